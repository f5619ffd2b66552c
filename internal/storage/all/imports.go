// Package all links every built-in storage backend into a binary. Importing
// it (as a blank import) runs each backend's init, which registers the
// backend's factory with the storage package:
//
//	import _ "github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "postgres", ...})
package all

import (
	_ "github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage/mssql"
	_ "github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage/mysql"
	_ "github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage/postgres"
	_ "github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage/sqlite"
)
