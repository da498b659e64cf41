package orchestrator

import "testing"

func TestDefaultScorerPrefersShallow(t *testing.T) {
	shallow := DefaultScorer("https://site.test/docs", 1)
	deep := DefaultScorer("https://site.test/docs/v2/api/ref", 1)
	if shallow <= deep {
		t.Errorf("shallow score %v <= deep score %v", shallow, deep)
	}

	clean := DefaultScorer("https://site.test/docs", 1)
	query := DefaultScorer("https://site.test/docs?page=2", 1)
	if clean <= query {
		t.Errorf("clean score %v <= query score %v", clean, query)
	}

	near := DefaultScorer("https://site.test/docs", 1)
	far := DefaultScorer("https://site.test/docs", 4)
	if near <= far {
		t.Errorf("depth-1 score %v <= depth-4 score %v", near, far)
	}
}

func TestKeywordScorerBoost(t *testing.T) {
	scorer := KeywordScorer([]string{"docs", "api"})
	plain := scorer("https://site.test/blog", 1)
	boosted := scorer("https://site.test/docs", 1)
	if boosted <= plain {
		t.Errorf("keyword link scored %v, plain link %v", boosted, plain)
	}

	double := scorer("https://site.test/docs/api", 1)
	if double <= boosted {
		t.Errorf("two-keyword link scored %v, one-keyword link %v", double, boosted)
	}
}

func TestScriptScorer(t *testing.T) {
	s, err := NewScriptScorer(`function score(url, depth) {
		if (url.indexOf("important") >= 0) { return 10; }
		return depth;
	}`)
	if err != nil {
		t.Fatal(err)
	}

	if got := s.Score("https://site.test/important", 1); got != 10 {
		t.Errorf("Score(important) = %v, want 10", got)
	}
	if got := s.Score("https://site.test/other", 3); got != 3 {
		t.Errorf("Score(other, 3) = %v, want 3", got)
	}
}

func TestScriptScorerRejectsBadScripts(t *testing.T) {
	if _, err := NewScriptScorer("syntax error ("); err == nil {
		t.Error("syntax error accepted")
	}
	if _, err := NewScriptScorer("var x = 1;"); err == nil {
		t.Error("script without score function accepted")
	}
}

func TestScriptScorerErrorFallsBack(t *testing.T) {
	s, err := NewScriptScorer(`function score(url, depth) { throw new Error("boom"); }`)
	if err != nil {
		t.Fatal(err)
	}
	got := s.Score("https://site.test/docs", 1)
	want := DefaultScorer("https://site.test/docs", 1)
	if got != want {
		t.Errorf("throwing script scored %v, want default %v", got, want)
	}
}
