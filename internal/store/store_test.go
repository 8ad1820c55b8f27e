package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/acolita/mutagen-bridge/internal/testing/fakes/fakeclock"
)

func newTestStore(t *testing.T) (*Store, *fakeclock.Clock) {
	t.Helper()
	clock := fakeclock.New(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	s, err := Open(filepath.Join(t.TempDir(), "connections.db"), clock)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func sampleConnection(name string) Connection {
	return Connection{
		Name:       name,
		Host:       "example.com",
		Port:       2222,
		User:       "deploy",
		RemotePath: "/srv/app",
		LocalPath:  "/home/test/projects/app",
		KeyPath:    "/home/test/.ssh/id_ed25519",
		SyncMode:   "two-way-safe",
		Tags:       []string{"prod", "web"},
	}
}

func TestOpen_Reopenable(t *testing.T) {
	clock := fakeclock.New(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "connections.db")

	s, err := Open(path, clock)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	conn := sampleConnection("Web App")
	if err := s.Upsert(context.Background(), &conn); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path, clock)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	connections, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(connections) != 1 || connections[0].Name != "Web App" {
		t.Errorf("connections = %+v", connections)
	}
}

func TestUpsert_InsertAssignsIDAndTimes(t *testing.T) {
	s, clock := newTestStore(t)

	conn := sampleConnection("Web App")
	if err := s.Upsert(context.Background(), &conn); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if conn.ID == 0 {
		t.Error("ID not assigned on insert")
	}
	if !conn.CreatedAt.Equal(clock.Now().UTC()) {
		t.Errorf("CreatedAt = %v, want clock time", conn.CreatedAt)
	}
	if conn.LastUsed != nil {
		t.Errorf("LastUsed = %v, want nil on insert", conn.LastUsed)
	}

	got, err := s.Get(context.Background(), conn.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Host != "example.com" || got.Port != 2222 || got.User != "deploy" {
		t.Errorf("got = %+v", got)
	}
	if got.KeyPath != "/home/test/.ssh/id_ed25519" || got.SyncMode != "two-way-safe" {
		t.Errorf("got = %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"prod", "web"}) {
		t.Errorf("Tags = %v", got.Tags)
	}
}

func TestUpsert_UpdatesExistingByName(t *testing.T) {
	s, clock := newTestStore(t)

	first := sampleConnection("Web App")
	if err := s.Upsert(context.Background(), &first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	clock.Advance(time.Hour)

	second := sampleConnection("Web App")
	second.Host = "new.example.com"
	if err := s.Upsert(context.Background(), &second); err != nil {
		t.Fatalf("Upsert() update error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("ID changed on upsert: %d -> %d", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update")
	}
	if second.LastUsed == nil || !second.LastUsed.Equal(clock.Now().UTC()) {
		t.Errorf("LastUsed = %v, want refreshed", second.LastUsed)
	}

	got, err := s.Get(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Host != "new.example.com" {
		t.Errorf("Host = %q", got.Host)
	}

	connections, _ := s.List(context.Background())
	if len(connections) != 1 {
		t.Errorf("upsert created a second row: %+v", connections)
	}
}

func TestUpsert_DefaultsPort(t *testing.T) {
	s, _ := newTestStore(t)

	conn := sampleConnection("Web App")
	conn.Port = 0
	if err := s.Upsert(context.Background(), &conn); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, _ := s.Get(context.Background(), conn.ID)
	if got.Port != 22 {
		t.Errorf("Port = %d, want 22", got.Port)
	}
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Get(context.Background(), 42)
	if !IsNotFound(err) {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

func TestGetByName_NotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetByName(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

func TestList_EmptyAndOrdered(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	connections, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if connections == nil || len(connections) != 0 {
		t.Errorf("empty list = %v, want non-nil empty", connections)
	}

	for _, name := range []string{"c", "a", "b"} {
		conn := sampleConnection(name)
		if err := s.Upsert(ctx, &conn); err != nil {
			t.Fatalf("Upsert(%s) error = %v", name, err)
		}
	}

	connections, _ = s.List(ctx)
	if len(connections) != 3 {
		t.Fatalf("connections = %+v", connections)
	}
	// Insertion order, not name order.
	if connections[0].Name != "c" || connections[1].Name != "a" || connections[2].Name != "b" {
		t.Errorf("order = %s, %s, %s", connections[0].Name, connections[1].Name, connections[2].Name)
	}
}

func TestUpdate_ReplacesFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	conn := sampleConnection("Web App")
	if err := s.Upsert(ctx, &conn); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	updated := sampleConnection("Renamed App")
	updated.Host = "other.example.com"
	updated.Tags = []string{"staging"}
	if err := s.Update(ctx, conn.ID, &updated); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := s.Get(ctx, conn.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Renamed App" || got.Host != "other.example.com" {
		t.Errorf("got = %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"staging"}) {
		t.Errorf("Tags = %v", got.Tags)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	s, _ := newTestStore(t)

	conn := sampleConnection("Web App")
	err := s.Update(context.Background(), 42, &conn)
	if !IsNotFound(err) {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

func TestUpdate_DuplicateName(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first := sampleConnection("First")
	second := sampleConnection("Second")
	if err := s.Upsert(ctx, &first); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, &second); err != nil {
		t.Fatal(err)
	}

	renamed := sampleConnection("First")
	err := s.Update(ctx, second.ID, &renamed)
	if !IsDuplicateName(err) {
		t.Errorf("error = %v, want DuplicateNameError", err)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	conn := sampleConnection("Web App")
	if err := s.Upsert(ctx, &conn); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, conn.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, conn.ID); !IsNotFound(err) {
		t.Errorf("Get() after delete = %v, want NotFoundError", err)
	}
	if err := s.Delete(ctx, conn.ID); !IsNotFound(err) {
		t.Errorf("second Delete() = %v, want NotFoundError", err)
	}
}

func TestDuplicate_AppendsCopySuffix(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	conn := sampleConnection("Web App")
	conn.Favorite = true
	if err := s.Upsert(ctx, &conn); err != nil {
		t.Fatal(err)
	}
	if err := s.TouchLastUsed(ctx, conn.ID); err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Minute)

	dup, err := s.Duplicate(ctx, conn.ID)
	if err != nil {
		t.Fatalf("Duplicate() error = %v", err)
	}
	if dup.Name != "Web App (Copy)" {
		t.Errorf("Name = %q", dup.Name)
	}
	if dup.ID == conn.ID {
		t.Error("duplicate shares the original id")
	}
	if dup.Favorite {
		t.Error("duplicate kept the favorite flag")
	}
	if dup.LastUsed != nil {
		t.Errorf("duplicate LastUsed = %v, want nil", dup.LastUsed)
	}
	if dup.Host != conn.Host || !reflect.DeepEqual(dup.Tags, conn.Tags) {
		t.Errorf("duplicate = %+v", dup)
	}
}

func TestDuplicate_NumbersFurtherCopies(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	conn := sampleConnection("Web App")
	if err := s.Upsert(ctx, &conn); err != nil {
		t.Fatal(err)
	}

	names := []string{"Web App (Copy)", "Web App (Copy) 2", "Web App (Copy) 3"}
	for _, want := range names {
		dup, err := s.Duplicate(ctx, conn.ID)
		if err != nil {
			t.Fatalf("Duplicate() error = %v", err)
		}
		if dup.Name != want {
			t.Errorf("Name = %q, want %q", dup.Name, want)
		}
	}
}

func TestTouchLastUsed(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	conn := sampleConnection("Web App")
	if err := s.Upsert(ctx, &conn); err != nil {
		t.Fatal(err)
	}

	clock.Advance(30 * time.Minute)
	if err := s.TouchLastUsed(ctx, conn.ID); err != nil {
		t.Fatalf("TouchLastUsed() error = %v", err)
	}

	got, _ := s.Get(ctx, conn.ID)
	if got.LastUsed == nil || !got.LastUsed.Equal(clock.Now().UTC()) {
		t.Errorf("LastUsed = %v, want clock time", got.LastUsed)
	}

	if err := s.TouchLastUsed(ctx, 999); !IsNotFound(err) {
		t.Errorf("TouchLastUsed(999) = %v, want NotFoundError", err)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	src, clock := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Web App", "Staging"} {
		conn := sampleConnection(name)
		if err := src.Upsert(ctx, &conn); err != nil {
			t.Fatal(err)
		}
	}

	data, err := src.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if data.Version != ExportVersion {
		t.Errorf("Version = %q", data.Version)
	}
	if !data.ExportedAt.Equal(clock.Now().UTC()) {
		t.Errorf("ExportedAt = %v", data.ExportedAt)
	}
	if len(data.Connections) != 2 {
		t.Fatalf("Connections = %+v", data.Connections)
	}

	dst, _ := newTestStore(t)
	result, err := dst.Import(ctx, data)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Imported != 2 || result.Skipped != 0 {
		t.Errorf("result = %+v", result)
	}

	again, err := dst.Import(ctx, data)
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if again.Imported != 0 || again.Skipped != 2 {
		t.Errorf("second import result = %+v", again)
	}

	got, err := dst.GetByName(ctx, "Web App")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if got.Host != "example.com" || got.SyncMode != "two-way-safe" {
		t.Errorf("imported = %+v", got)
	}
}

func TestImport_DefaultsSyncMode(t *testing.T) {
	s, _ := newTestStore(t)

	data := &ExportData{
		Version: ExportVersion,
		Connections: []ExportedConnection{{
			Name:       "Bare",
			Host:       "example.com",
			User:       "deploy",
			RemotePath: "/srv",
			LocalPath:  "/tmp/srv",
		}},
	}
	if _, err := s.Import(context.Background(), data); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	got, err := s.GetByName(context.Background(), "Bare")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if got.SyncMode != "one-way-safe" {
		t.Errorf("SyncMode = %q, want default", got.SyncMode)
	}
	if got.Port != 22 {
		t.Errorf("Port = %d, want 22", got.Port)
	}
}

func TestTags_EmptyRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)

	conn := sampleConnection("No Tags")
	conn.Tags = nil
	if err := s.Upsert(context.Background(), &conn); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get(context.Background(), conn.ID)
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("Tags = %#v, want empty non-nil slice", got.Tags)
	}
}
