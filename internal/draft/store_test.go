package draft_test

import (
	"testing"

	"github.com/goliatone/go-blocksync/internal/draft"
	"github.com/goliatone/go-blocksync/internal/reconcile"
)

func TestStoreStartsClean(t *testing.T) {
	store := draft.NewStore(map[string]any{"title": "A"})
	if store.Dirty() {
		t.Fatalf("expected new store to be clean")
	}
	if store.Read()["title"] != "A" {
		t.Fatalf("expected draft seeded from initial content")
	}
}

func TestStoreUpdateMarksDirtyOnlyOnChange(t *testing.T) {
	store := draft.NewStore(map[string]any{"title": "A"})

	content, dirty := store.Update(map[string]any{"title": "A"})
	if dirty {
		t.Fatalf("expected no-op update to keep store clean")
	}
	if content["title"] != "A" {
		t.Fatalf("unexpected content %#v", content)
	}

	content, dirty = store.Update(map[string]any{"title": "AB"})
	if !dirty {
		t.Fatalf("expected changing update to mark store dirty")
	}
	if content["title"] != "AB" {
		t.Fatalf("expected update result returned synchronously, got %#v", content)
	}
	if !store.Dirty() {
		t.Fatalf("expected Dirty to reflect last update")
	}
}

func TestStoreUpdateReturnsCallerOwnedCopy(t *testing.T) {
	store := draft.NewStore(map[string]any{"title": "A"})
	content, _ := store.Update(map[string]any{"title": "B"})
	content["title"] = "mutated"
	if store.Read()["title"] != "B" {
		t.Fatalf("expected store draft isolated from returned map")
	}
}

func TestStoreCleanWhenMatchingEitherBaseline(t *testing.T) {
	store := draft.NewStore(map[string]any{"title": "A"})
	store.Update(map[string]any{"title": "B"})

	if dirty := store.SetServer(map[string]any{"title": "B"}); dirty {
		t.Fatalf("expected draft matching server baseline to be clean")
	}
	if dirty := store.SetServer(map[string]any{"title": "C"}); !dirty {
		t.Fatalf("expected draft to be dirty again once server moved")
	}
	if dirty := store.SetLastSaved(map[string]any{"title": "B"}); dirty {
		t.Fatalf("expected draft matching last saved baseline to be clean")
	}
}

func TestStoreReplaceRevertsDraft(t *testing.T) {
	store := draft.NewStore(map[string]any{"title": "A"})
	store.Update(map[string]any{"title": "B"})

	if dirty := store.Replace(store.Server()); dirty {
		t.Fatalf("expected revert to server baseline to be clean")
	}
	if !store.Matches(map[string]any{"title": "A"}) {
		t.Fatalf("expected draft reverted, got %#v", store.Read())
	}
}

func TestStoreUsesConfiguredPolicy(t *testing.T) {
	policy := reconcile.NewPolicy([]string{"title"}, nil, nil)
	store := draft.NewStore(map[string]any{"title": "A", "name": "N"}, draft.WithPolicy(policy))

	content, _ := store.Update(map[string]any{"title": "", "name": ""})
	if content["title"] != "" {
		t.Fatalf("expected always-assign title cleared, got %#v", content)
	}
	if content["name"] != "N" {
		t.Fatalf("expected default field to skip empty string, got %#v", content)
	}
}

func TestStoreAddingEmptyKeyMarksDirty(t *testing.T) {
	policy := reconcile.NewPolicy([]string{"subtitle"}, nil, nil)
	store := draft.NewStore(map[string]any{"title": "X"}, draft.WithPolicy(policy))

	content, dirty := store.Update(map[string]any{"subtitle": ""})
	if _, ok := content["subtitle"]; !ok {
		t.Fatalf("expected always-assign key added, got %#v", content)
	}
	if !dirty || !store.Dirty() {
		t.Fatalf("expected new empty key to mark the draft dirty")
	}

	if dirty := store.Replace(map[string]any{"title": "X", "body": nil}); !dirty {
		t.Fatalf("expected new null key to mark the draft dirty")
	}
	if dirty := store.Replace(map[string]any{"title": "X"}); dirty {
		t.Fatalf("expected draft matching the baselines to be clean")
	}
}
