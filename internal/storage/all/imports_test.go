package all

import (
	"testing"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage"
)

func TestAllBackendsRegistered(t *testing.T) {
	t.Parallel()

	got := map[string]bool{}
	for _, k := range storage.ListKinds() {
		got[k] = true
	}
	for _, want := range []string{"mssql", "mysql", "postgres", "sqlite"} {
		if !got[want] {
			t.Errorf("backend %q not registered; have %v", want, storage.ListKinds())
		}
	}
}
