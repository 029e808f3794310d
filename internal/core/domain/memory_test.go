package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestVisibility_IsValid(t *testing.T) {
	for _, v := range []Visibility{VisibilityPersonal, VisibilityOrganization, VisibilityPublic} {
		if !v.IsValid() {
			t.Errorf("expected %s to be valid", v)
		}
	}
	if Visibility("team").IsValid() {
		t.Error("expected unknown visibility to be invalid")
	}
}

func TestMemory_EmbeddingText(t *testing.T) {
	m := &Memory{
		Content:  " System performance tuning notes ",
		Errors:   "",
		Lessons:  "cache warmup matters",
		Metadata: map[string]any{"b": 2, "a": "x"},
	}

	want := "System performance tuning notes\ncache warmup matters\n{\"a\":\"x\",\"b\":2}"
	if got := m.EmbeddingText(); got != want {
		t.Errorf("EmbeddingText() = %q, want %q", got, want)
	}

	empty := &Memory{}
	if got := empty.EmbeddingText(); got != "" {
		t.Errorf("expected empty text, got %q", got)
	}
}

func TestMemory_MatchedFields(t *testing.T) {
	m := &Memory{
		Content: "Deploy failed on Friday",
		Lessons: "Never deploy on Friday",
		Errors:  "timeout talking to registry",
	}

	tests := []struct {
		terms []string
		want  []string
	}{
		{[]string{"friday"}, []string{FieldContent, FieldLessons}},
		{[]string{"TIMEOUT"}, []string{FieldErrors}},
		{[]string{"unrelated"}, nil},
		{[]string{""}, nil},
	}

	for _, tt := range tests {
		if got := m.MatchedFields(tt.terms); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("MatchedFields(%v) = %v, want %v", tt.terms, got, tt.want)
		}
	}
}

func TestMemory_Clone(t *testing.T) {
	now := time.Now()
	m := &Memory{
		ID:         "m1",
		Embedding:  []float32{1, 2},
		Metadata:   map[string]any{"k": "v"},
		ArchivedAt: &now,
	}

	c := m.Clone()
	c.Embedding[0] = 9
	c.Metadata["k"] = "changed"
	*c.ArchivedAt = now.Add(time.Hour)

	if m.Embedding[0] != 1 || m.Metadata["k"] != "v" || !m.ArchivedAt.Equal(now) {
		t.Error("clone shares state with original")
	}
	if !m.IsArchived() || !m.HasEmbedding() {
		t.Error("expected archived memory with embedding")
	}
}
