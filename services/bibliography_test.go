package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"claim-dossier/models"
)

func TestParseCitationOrder(t *testing.T) {
	got := ParseCitationOrder("Trials [2] and [1] agree; [2] again, [0] and [x] ignored, see [10].")
	if diff := cmp.Diff([]int{2, 1, 10}, got); diff != "" {
		t.Fatalf("citation order mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildBibliography(t *testing.T) {
	cards := []models.EvidenceCard{
		{PaperID: 10, Title: "First", Year: 2020},
		{PaperID: 20, Title: "Second"},
		{PaperID: 30, Title: "Third", Year: 2018},
	}
	papers := map[uint]models.Paper{
		10: {ID: 10, DOI: "10.1/first", Journal: "BMJ", Authors: []string{"Roe R"}},
		30: {ID: 30, PMID: "333"},
	}
	refs := ReferencesFor(cards, papers)
	if refs[0].Number != 1 || refs[2].Number != 3 || refs[0].DOI != "10.1/first" || refs[2].PMID != "333" {
		t.Fatalf("unexpected references: %+v", refs)
	}

	ordered, warnings := BuildBibliography("Strong data [3], weaker [1], unknown [7].", refs)
	var numbers []int
	for _, r := range ordered {
		numbers = append(numbers, r.Number)
	}
	if diff := cmp.Diff([]int{3, 1, 2}, numbers); diff != "" {
		t.Fatalf("bibliography order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"citation [7] has no matching source"}, warnings); diff != "" {
		t.Fatalf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildBibliographyEmpty(t *testing.T) {
	ordered, warnings := BuildBibliography("text [1]", nil)
	if ordered != nil || warnings != nil {
		t.Fatalf("expected nothing, got %v %v", ordered, warnings)
	}
}

func TestFormatReference(t *testing.T) {
	cases := []struct {
		name string
		ref  Reference
		want string
	}{
		{
			name: "full",
			ref:  Reference{Title: "Vitamin D and colds", Year: 2020, Journal: "BMJ", DOI: "10.1/x", PMID: "123", Authors: []string{"Doe J", "Roe R"}},
			want: "Doe J, Roe R (2020). Vitamin D and colds. BMJ. doi:10.1/x pmid:123",
		},
		{
			name: "many authors",
			ref:  Reference{Title: "T", Year: 2001, Authors: []string{"A", "B", "C", "D", "E", "F", "G"}},
			want: "A, B, C, D, E, F et al. (2001). T.",
		},
		{
			name: "unknown",
			ref:  Reference{},
			want: "Unknown Authors (n.d.). Untitled.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatReference(tc.ref); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
