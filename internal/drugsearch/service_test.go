package drugsearch

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"sync"
	"testing"
	"time"

	"pillgenious/internal/keywords"
	"pillgenious/internal/logger"
	"pillgenious/internal/ocr"
	"pillgenious/pkg/models"
)

type fakeRecognizer struct {
	text  string
	err   error
	calls int
}

func (f *fakeRecognizer) Recognize(ctx context.Context, imagePath string) (*ocr.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.Result{Text: f.text, Engine: "fake", ProcessedAt: time.Now()}, nil
}

func (f *fakeRecognizer) Name() string { return "fake" }
func (f *fakeRecognizer) Close() error { return nil }

type fakeCompletion struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (f *fakeCompletion) Complete(ctx context.Context, req keywords.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.response, f.err
}

type fakeCatalog struct {
	textDrugs    []models.Drug
	textErr      error
	patternDrugs []models.Drug
	patternErr   error

	textCalls    int
	patternCalls int
	phrase       string
	patterns     []string
	limits       []int
}

func (f *fakeCatalog) TextSearch(ctx context.Context, phrase string, limit int) ([]models.Drug, error) {
	f.textCalls++
	f.phrase = phrase
	f.limits = append(f.limits, limit)
	return f.textDrugs, f.textErr
}

func (f *fakeCatalog) PatternSearch(ctx context.Context, patterns []string, limit int) ([]models.Drug, error) {
	f.patternCalls++
	f.patterns = patterns
	f.limits = append(f.limits, limit)
	return f.patternDrugs, f.patternErr
}

func (f *fakeCatalog) Name() string                    { return "fake" }
func (f *fakeCatalog) Close(ctx context.Context) error { return nil }

func newTestService(rec *fakeRecognizer, ai *fakeCompletion, cat *fakeCatalog) *Service {
	log := logger.Discard()
	var extractor *keywords.AIExtractor
	if ai != nil {
		extractor = keywords.NewAIExtractor(ai, keywords.AIOptions{Logger: &log})
	}
	return New(rec, extractor, cat, Options{Logger: &log})
}

func TestSearchBlankTextShortCircuits(t *testing.T) {
	rec := &fakeRecognizer{text: "  \n\t "}
	ai := &fakeCompletion{response: `["Paracetamol"]`}
	cat := &fakeCatalog{}

	got, err := newTestService(rec, ai, cat).Search(context.Background(), "blank.jpg")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	want := models.EmptySearchResult("")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search() = %+v, want %+v", got, want)
	}
	if ai.calls != 0 || cat.textCalls != 0 || cat.patternCalls != 0 {
		t.Errorf("expected no downstream calls, got ai=%d text=%d pattern=%d", ai.calls, cat.textCalls, cat.patternCalls)
	}
}

func TestSearchParacetamolLabel(t *testing.T) {
	rec := &fakeRecognizer{text: "PARACETAMOL 500mg Tab. Take twice daily"}
	ai := &fakeCompletion{response: `["Paracetamol"]`}
	cat := &fakeCatalog{textDrugs: []models.Drug{
		{ID: "1", Name: "Paracetamol 500mg", IsActive: true},
		{ID: "2", Name: "Panadol", IsActive: true},
	}}

	got, err := newTestService(rec, ai, cat).Search(context.Background(), "label.jpg")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if got.RawText != rec.text {
		t.Errorf("RawText = %q", got.RawText)
	}
	if got.Keywords[0] != "Paracetamol" {
		t.Errorf("Keywords = %v, want Paracetamol first", got.Keywords)
	}
	if want := []string{"Paracetamol", "Tab", "Take"}; !reflect.DeepEqual(got.Keywords, want) {
		t.Errorf("Keywords = %v, want %v", got.Keywords, want)
	}
	if len(got.Drugs) == 0 || got.Drugs[0].Name != "Paracetamol 500mg" {
		t.Errorf("Drugs = %+v, want Paracetamol 500mg first", got.Drugs)
	}
	if cat.phrase != "Paracetamol Tab Take" {
		t.Errorf("phrase = %q", cat.phrase)
	}
	if cat.patternCalls != 0 {
		t.Error("pattern stage should not run after a full-text hit")
	}
}

func TestSearchAIFailureDegradesToHeuristic(t *testing.T) {
	tests := []struct {
		name string
		ai   *fakeCompletion
	}{
		{name: "api error", ai: &fakeCompletion{err: errors.New("503 service unavailable")}},
		{name: "malformed response", ai: &fakeCompletion{response: "I think it is Ibuprofen"}},
		{name: "no extractor", ai: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecognizer{text: "Ibuprofen 200mg tablets"}
			cat := &fakeCatalog{textDrugs: []models.Drug{{Name: "Ibuprofen 200mg"}}}

			got, err := newTestService(rec, tt.ai, cat).Search(context.Background(), "x.jpg")
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if want := []string{"Ibuprofen"}; !reflect.DeepEqual(got.Keywords, want) {
				t.Errorf("Keywords = %v, want %v", got.Keywords, want)
			}
			if len(got.Drugs) != 1 {
				t.Errorf("Drugs = %+v", got.Drugs)
			}
		})
	}
}

func TestSearchAIKeywordsComeFirst(t *testing.T) {
	rec := &fakeRecognizer{text: "Brufen 400 film coated"}
	ai := &fakeCompletion{response: `["ibuprofen", "BRUFEN"]`}
	cat := &fakeCatalog{}

	got, err := newTestService(rec, ai, cat).Search(context.Background(), "x.jpg")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if want := []string{"Ibuprofen", "Brufen"}; !reflect.DeepEqual(got.Keywords, want) {
		t.Errorf("Keywords = %v, want %v", got.Keywords, want)
	}
}

func TestSearchFallsBackWhenFullTextFails(t *testing.T) {
	rec := &fakeRecognizer{text: "Cetirizine"}
	cat := &fakeCatalog{
		textErr:      errors.New("text index required for $text query"),
		patternDrugs: []models.Drug{{Name: "Cetirizine 10mg"}},
	}

	got, err := newTestService(rec, nil, cat).Search(context.Background(), "x.jpg")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got.Drugs) != 1 || got.Drugs[0].Name != "Cetirizine 10mg" {
		t.Errorf("Drugs = %+v", got.Drugs)
	}
	if cat.textCalls != 1 || cat.patternCalls != 1 {
		t.Errorf("calls: text=%d pattern=%d", cat.textCalls, cat.patternCalls)
	}
}

func TestSearchFallsBackWhenFullTextEmpty(t *testing.T) {
	rec := &fakeRecognizer{text: "Loratadine"}
	cat := &fakeCatalog{
		textDrugs:    []models.Drug{},
		patternDrugs: []models.Drug{{Name: "Loratadine 10mg"}},
	}

	got, err := newTestService(rec, nil, cat).Search(context.Background(), "x.jpg")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got.Drugs) != 1 {
		t.Errorf("Drugs = %+v", got.Drugs)
	}
}

func TestSearchNothingFoundIsSuccess(t *testing.T) {
	rec := &fakeRecognizer{text: "Unobtainium"}
	cat := &fakeCatalog{}

	got, err := newTestService(rec, nil, cat).Search(context.Background(), "x.jpg")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got.Drugs == nil || len(got.Drugs) != 0 {
		t.Errorf("Drugs = %#v, want empty non-nil", got.Drugs)
	}
}

func TestSearchBothStagesFail(t *testing.T) {
	textErr := errors.New("text index missing")
	patternErr := errors.New("connection reset")
	rec := &fakeRecognizer{text: "Metformin"}
	cat := &fakeCatalog{textErr: textErr, patternErr: patternErr}

	_, err := newTestService(rec, nil, cat).Search(context.Background(), "x.jpg")
	if !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("Search() error = %v, want ErrSearchFailed", err)
	}
	if !errors.Is(err, textErr) || !errors.Is(err, patternErr) {
		t.Error("SearchError should wrap both stage errors")
	}

	var searchErr *SearchError
	if !errors.As(err, &searchErr) || len(searchErr.Stages) != 2 {
		t.Fatalf("expected a SearchError with two stages, got %v", err)
	}
	if searchErr.Stages[0].Stage != "fulltext" || searchErr.Stages[1].Stage != "pattern" {
		t.Errorf("stages = %+v", searchErr.Stages)
	}
}

func TestSearchOnlyFinalStageFailing(t *testing.T) {
	rec := &fakeRecognizer{text: "Metformin"}
	cat := &fakeCatalog{patternErr: errors.New("timeout")}

	_, err := newTestService(rec, nil, cat).Search(context.Background(), "x.jpg")
	var searchErr *SearchError
	if !errors.As(err, &searchErr) || len(searchErr.Stages) != 1 {
		t.Fatalf("Search() error = %v, want a SearchError with one stage", err)
	}
}

func TestSearchPassesOCRErrorsThrough(t *testing.T) {
	rec := &fakeRecognizer{err: ocr.WrapOCRError("fake", ocr.ErrUnreadableImage, "gone")}
	cat := &fakeCatalog{}

	_, err := newTestService(rec, nil, cat).Search(context.Background(), "missing.jpg")
	if !errors.Is(err, ocr.ErrUnreadableImage) {
		t.Fatalf("Search() error = %v, want ErrUnreadableImage", err)
	}
	if errors.Is(err, ErrSearchFailed) {
		t.Error("OCR failures must not be reported as search failures")
	}
	if cat.textCalls != 0 {
		t.Error("catalog should not be queried")
	}
}

func TestSearchPhraseAndLimit(t *testing.T) {
	rec := &fakeRecognizer{text: "Amoxil Augmentin Clavulin Flemoxin Moxatag Trimox"}
	cat := &fakeCatalog{}

	got, err := newTestService(rec, nil, cat).Search(context.Background(), "x.jpg")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got.Keywords) != keywords.MaxKeywords {
		t.Errorf("Keywords = %v, want %d", got.Keywords, keywords.MaxKeywords)
	}
	if cat.phrase != "Amoxil Augmentin Clavulin" {
		t.Errorf("phrase = %q, want first three keywords", cat.phrase)
	}
	if len(cat.patterns) != keywords.MaxKeywords {
		t.Errorf("patterns = %v, want one per keyword", cat.patterns)
	}
	for _, limit := range cat.limits {
		if limit != DefaultMaxResults {
			t.Errorf("limit = %d, want %d", limit, DefaultMaxResults)
		}
	}
}

func TestSearchPatternsMatchLiterally(t *testing.T) {
	rec := &fakeRecognizer{text: "Co-careldopa 25mg/100mg"}
	cat := &fakeCatalog{}

	if _, err := newTestService(rec, nil, cat).Search(context.Background(), "x.jpg"); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(cat.patterns) == 0 || cat.patterns[0] != "Co-careldopa" {
		t.Fatalf("patterns = %v", cat.patterns)
	}
	re := regexp.MustCompile("(?i)" + cat.patterns[0])
	if !re.MatchString("co-careldopa 25mg/100mg tablets") {
		t.Error("pattern should match the catalog name case-insensitively")
	}
}

func TestBuildPatternsEscapesMetacharacters(t *testing.T) {
	patterns := buildPatterns([]string{"Vitamin C+", "St. John's (Wort)", "Co-careldopa"})
	want := []string{`Vitamin C\+`, `St\. John's \(Wort\)`, "Co-careldopa"}
	if !reflect.DeepEqual(patterns, want) {
		t.Fatalf("buildPatterns() = %v, want %v", patterns, want)
	}

	re := regexp.MustCompile("(?i)" + patterns[0])
	if !re.MatchString("VITAMIN C+ effervescent") || re.MatchString("Vitamin CC") {
		t.Error("escaped pattern should match only the literal text")
	}
}

func TestExtractKeywordsDoesNotTouchCatalog(t *testing.T) {
	rec := &fakeRecognizer{text: "Omeprazole 20mg"}
	cat := &fakeCatalog{}

	got, err := newTestService(rec, nil, cat).ExtractKeywords(context.Background(), "x.jpg")
	if err != nil {
		t.Fatalf("ExtractKeywords() error = %v", err)
	}
	if got.RawText != "Omeprazole 20mg" || !reflect.DeepEqual(got.Keywords, []string{"Omeprazole"}) {
		t.Errorf("ExtractKeywords() = %+v", got)
	}
	if cat.textCalls+cat.patternCalls != 0 {
		t.Error("ExtractKeywords should not query the catalog")
	}
}
