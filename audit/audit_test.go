package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
)

func TestRecordAndList(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	l, err := NewLog(db)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	admin := Actor{Name: "admin", IP: "127.0.0.1"}

	if err := l.Record(ctx, admin, SettingsUpdate, "general.siteName", map[string]string{"to": "Acme"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Record(ctx, System, SettingsInit, "defaults", nil); err != nil {
		t.Fatal(err)
	}
	if err := l.Record(ctx, admin, SettingsDelete, "email.smtpHost", nil); err != nil {
		t.Fatal(err)
	}

	all, p, err := l.List(ctx, "", paging.New(1, 2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if p.Total != 3 || len(all) != 2 {
		t.Fatalf("total=%d len=%d", p.Total, len(all))
	}
	if all[0].Action != SettingsDelete || all[1].Actor.Name != "system" {
		t.Errorf("unexpected order: %+v", all)
	}

	updates, _, err := l.List(ctx, SettingsUpdate, paging.New(1, 10, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 1 || string(updates[0].Details) != `{"to":"Acme"}` || updates[0].Actor.IP != "127.0.0.1" {
		t.Errorf("updates = %+v", updates)
	}
}
