package merge

import (
	"testing"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

func sampleLinks() []models.Link {
	return []models.Link{
		{ID: 1, Title: "GitHub", Position: 0, IsActive: true},
		{ID: 2, Title: "Twitter", Position: 1, IsActive: true},
	}
}

func TestApplyInsertAppends(t *testing.T) {
	links := sampleLinks()
	blog := models.Link{ID: 3, Title: "Blog", Position: 2}

	links = Apply(links, changefeed.ActionInsert, blog, models.Link{})
	if len(links) != 3 || links[2].Title != "Blog" {
		t.Fatalf("Expected Blog appended, got %v", links)
	}

	// No duplicate check: the same insert twice yields two entries
	links = Apply(links, changefeed.ActionInsert, blog, models.Link{})
	if len(links) != 4 {
		t.Errorf("Expected duplicate insert to append, got %d links", len(links))
	}
}

func TestApplyUpdate(t *testing.T) {
	links := sampleLinks()
	links = Apply(links, changefeed.ActionUpdate, models.Link{ID: 2, Title: "X"}, models.Link{})
	if links[1].Title != "X" {
		t.Errorf("Expected Twitter renamed, got %s", links[1].Title)
	}
}

func TestApplyUpdateAbsentIsNoop(t *testing.T) {
	links := sampleLinks()
	out := Apply(links, changefeed.ActionUpdate, models.Link{ID: 99, Title: "Ghost"}, models.Link{})
	if len(out) != 2 || out[0].Title != "GitHub" || out[1].Title != "Twitter" {
		t.Errorf("Expected view unchanged, got %v", out)
	}
}

func TestApplyDeleteUsesOldRow(t *testing.T) {
	links := sampleLinks()
	links = Apply(links, changefeed.ActionDelete, models.Link{}, models.Link{ID: 1})
	if len(links) != 1 || links[0].ID != 2 {
		t.Errorf("Expected GitHub removed, got %v", links)
	}
	links = Apply(links, changefeed.ActionDelete, models.Link{}, models.Link{ID: 1})
	if len(links) != 1 {
		t.Errorf("Expected delete of absent id to be a no-op, got %v", links)
	}
}

func TestUpsert(t *testing.T) {
	links := sampleLinks()
	links = Upsert(links, models.Link{ID: 2, Title: "X"})
	if len(links) != 2 || links[1].Title != "X" {
		t.Errorf("Expected replacement, got %v", links)
	}
	links = Upsert(links, models.Link{ID: 3, Title: "Blog"})
	if len(links) != 3 {
		t.Errorf("Expected append, got %v", links)
	}
}

func TestActiveLinksSortsAndFilters(t *testing.T) {
	links := []models.Link{
		{ID: 1, Title: "GitHub", Position: 1, IsActive: true},
		{ID: 2, Title: "Twitter", Position: 2, IsActive: false},
		{ID: 3, Title: "Blog", Position: 0, IsActive: true},
	}
	got := ActiveLinks(links)
	if len(got) != 2 || got[0].Title != "Blog" || got[1].Title != "GitHub" {
		t.Errorf("Expected [Blog GitHub], got %v", got)
	}
	if links[0].Title != "GitHub" {
		t.Error("Expected input slice left in place")
	}
}

func TestClone(t *testing.T) {
	links := sampleLinks()
	c := Clone(links)
	c[0].Title = "changed"
	if links[0].Title != "GitHub" {
		t.Error("Expected Clone to copy the backing array")
	}
	if Clone[models.Link](nil) != nil {
		t.Error("Expected nil clone of nil")
	}
}
