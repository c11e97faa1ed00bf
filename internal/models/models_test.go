package models

import "testing"

func TestMediaTypeValid(t *testing.T) {
	for _, mt := range []MediaType{MediaTypeVideo, MediaTypeAudio, MediaTypeOther} {
		if !mt.Valid() {
			t.Fatalf("expected %q to be valid", mt)
		}
	}
	if MediaType("image").Valid() {
		t.Fatal("expected unknown type to be invalid")
	}
	if MediaType("").Valid() {
		t.Fatal("expected empty type to be invalid")
	}
}

func TestParseMediaType(t *testing.T) {
	mt, err := ParseMediaType("audio")
	if err != nil {
		t.Fatalf("ParseMediaType returned error: %v", err)
	}
	if mt != MediaTypeAudio {
		t.Fatalf("expected audio, got %q", mt)
	}
	if _, err := ParseMediaType("document"); err == nil {
		t.Fatal("expected error for unknown media type")
	}
}
