package story

import "testing"

func TestExtractMetadata(t *testing.T) {
	t.Parallel()

	meta := ExtractMetadata("On 3/14/2024 Acme Robotics sold units for $4.5 million, up from 2024-1-5 levels.")

	for _, anchor := range []string{"3/14/2024", "2024-1-5", "4.5", "2024", "acme robotics"} {
		if !meta.Has(anchor) {
			t.Fatalf("expected anchor %q in %v", anchor, meta)
		}
	}
	if meta.Has("On") || meta.Has("on 3") {
		t.Fatalf("unexpected anchor in %v", meta)
	}
}

func TestExtractMetadataSpansNeedTwoWords(t *testing.T) {
	t.Parallel()

	meta := ExtractMetadata("Washington said nothing. Al Gore warns of New York Storms")
	if meta.Has("washington") {
		t.Fatalf("single capitalized words are not spans: %v", meta)
	}
	if !meta.Has("new york storms") {
		t.Fatalf("expected multi-word span, got %v", meta)
	}
	if meta.Has("al gore") || meta.Has("gore") {
		t.Fatalf("words shorter than three letters do not join spans: %v", meta)
	}
}

func TestMetadataOverlapRatio(t *testing.T) {
	t.Parallel()

	a := ExtractMetadata("Acme Robotics raised 40 million on 2024-05-01")
	b := ExtractMetadata("Acme Robotics levanta 40 millones el 2024-05-01 en Madrid")

	if got := MetadataOverlapRatio(a, b); got != 1.0 {
		t.Fatalf("expected the smaller set to be fully covered, got %v (a=%v b=%v)", got, a, b)
	}
	if got := MetadataOverlapRatio(a, Metadata{}); got != 0 {
		t.Fatalf("expected 0 for empty set, got %v", got)
	}
}
