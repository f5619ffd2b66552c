// Command elt copies and loads the e-commerce raw tables and drives the
// downstream dbt and dashboard refresh workflow.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:]))
}
