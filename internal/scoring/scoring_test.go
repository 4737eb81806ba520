package scoring

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/record"
	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/internal/reducer"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/errors"
)

const epsilon = 1e-9

func buildAggregate(obs ...record.Observation) reducer.Aggregate {
	agg := reducer.NewAggregate()
	for _, o := range obs {
		agg.Add(o)
	}
	return agg
}

func TestTermFrequenciesSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	agg := reducer.NewAggregate()
	for i := 0; i < 500; i++ {
		agg.Add(record.Observation{
			Term:     string(rune('a' + rng.Intn(20))),
			Category: []string{"MLA1", "MLA2", "MLA3"}[rng.Intn(3)],
			Bucket:   []record.Bucket{record.BucketNegative, record.BucketPositive}[rng.Intn(2)],
			Count:    int64(1 + rng.Intn(9)),
		})
	}
	tfs, err := TermFrequencies(agg)
	if err != nil {
		t.Fatal(err)
	}
	if len(tfs) == 0 {
		t.Fatal("no scopes")
	}
	for scope, terms := range tfs {
		var sum float64
		for _, tf := range terms {
			sum += tf
		}
		if math.Abs(sum-1) > epsilon {
			t.Errorf("scope %s: sum TF = %v", scope, sum)
		}
	}
}

func TestTermFrequenciesEmptyScope(t *testing.T) {
	agg := reducer.Aggregate{
		record.BucketNegative: {"X": {}},
	}
	if _, err := TermFrequencies(agg); !errors.Is(err, apperrors.ErrEmptyScope) {
		t.Fatalf("error = %v, want ErrEmptyScope", err)
	}
}

func TestWeightsTwoCategories(t *testing.T) {
	agg := buildAggregate(
		record.Observation{"unico", "X", record.BucketPositive, 4},
		record.Observation{"comun", "X", record.BucketPositive, 2},
		record.Observation{"comun", "Y", record.BucketNegative, 1},
		record.Observation{"otro", "Y", record.BucketNegative, 1},
	)
	weights, err := Weights(agg)
	if err != nil {
		t.Fatal(err)
	}
	if got := weights["unico"]; math.Abs(got-math.Log(2)) > epsilon {
		t.Errorf("weight(unico) = %v, want log 2", got)
	}
	if got := weights["comun"]; got != 0 {
		t.Errorf("weight(comun) = %v, want 0", got)
	}

	scores, err := Compute(agg)
	if err != nil {
		t.Fatal(err)
	}
	for scope, terms := range scores {
		if s, ok := terms["comun"]; ok && s != 0 {
			t.Errorf("scope %s: score(comun) = %v, want 0", scope, s)
		}
	}
	x := Scope{Category: "X", Bucket: record.BucketPositive}
	want := (4.0 / 6.0) * math.Log(2)
	if got := scores[x]["unico"]; math.Abs(got-want) > epsilon {
		t.Errorf("score(unico) = %v, want %v", got, want)
	}
}

func TestWeightBounds(t *testing.T) {
	for n := 1; n <= 5; n++ {
		all, err := Weight(n, n)
		if err != nil || all != 0 {
			t.Errorf("Weight(%d, %d) = %v, %v; want 0", n, n, all, err)
		}
		one, err := Weight(n, 1)
		if err != nil || math.Abs(one-math.Log(float64(n))) > epsilon {
			t.Errorf("Weight(%d, 1) = %v, %v; want log %d", n, one, err, n)
		}
		for k := 1; k < n; k++ {
			a, _ := Weight(n, k)
			b, _ := Weight(n, k+1)
			if a <= b {
				t.Errorf("Weight(%d, %d) = %v not above Weight(%d, %d) = %v", n, k, a, n, k+1, b)
			}
		}
	}
	if _, err := Weight(3, 0); !errors.Is(err, apperrors.ErrNoCategories) {
		t.Errorf("Weight(3, 0) error = %v, want ErrNoCategories", err)
	}
}

func TestWeightIgnoresBucket(t *testing.T) {
	agg := buildAggregate(
		record.Observation{"envio", "X", record.BucketPositive, 1},
		record.Observation{"envio", "X", record.BucketNegative, 9},
		record.Observation{"precio", "Y", record.BucketNegative, 1},
		record.Observation{"precio", "Z", record.BucketNegative, 1},
	)
	weights, err := Weights(agg)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := weights["envio"], math.Log(3); math.Abs(got-want) > epsilon {
		t.Errorf("weight(envio) = %v, want %v", got, want)
	}
	if got, want := weights["precio"], math.Log(1.5); math.Abs(got-want) > epsilon {
		t.Errorf("weight(precio) = %v, want %v", got, want)
	}
}

func TestComputeEmpty(t *testing.T) {
	scores, err := Compute(reducer.NewAggregate())
	if err != nil || len(scores) != 0 {
		t.Fatalf("Compute(empty) = %v, %v", scores, err)
	}
}
