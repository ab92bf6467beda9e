package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

type epochStage struct {
	calls []int
}

func (s *epochStage) SetEpoch(epoch int) { s.calls = append(s.calls, epoch) }

func (s *epochStage) Apply(ctx context.Context, upstream Iterator) Iterator { return upstream }

type closeStage struct {
	name  string
	order *[]string
	err   error
}

func (s *closeStage) Apply(ctx context.Context, upstream Iterator) Iterator { return upstream }

func (s *closeStage) Close() error {
	*s.order = append(*s.order, s.name)
	return s.err
}

func numbers(n int) Source {
	return SourceFunc(func(ctx context.Context) Iterator {
		samples := make([]Sample, n)
		for i := range samples {
			samples[i] = Sample{"n": i}
		}
		return Slice(samples...)
	})
}

func TestRun_ComposesLeftToRight(t *testing.T) {
	double := Map(func(s Sample) (Sample, error) {
		s["n"] = s["n"].(int) * 2
		return s, nil
	}, nil)
	plusOne := Map(func(s Sample) (Sample, error) {
		s["n"] = s["n"].(int) + 1
		return s, nil
	}, nil)

	got, err := Collect(context.Background(), Run(context.Background(), New(numbers(3), double, plusOne)), 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := []int{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i, s := range got {
		if s["n"] != want[i] {
			t.Errorf("sample %d = %v, want %d", i, s["n"], want[i])
		}
	}
}

func TestRun_IsRestartable(t *testing.T) {
	p := New(numbers(2))
	for pass := 0; pass < 3; pass++ {
		got, err := Collect(context.Background(), Run(context.Background(), p), 0)
		if err != nil {
			t.Fatalf("pass %d: %v", pass, err)
		}
		if len(got) != 2 {
			t.Fatalf("pass %d: got %d samples, want 2", pass, len(got))
		}
	}
}

func TestRun_NilSource(t *testing.T) {
	_, err := Run(context.Background(), Pipeline{}).Next(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestSetEpochs_SkipsStagesWithoutCapability(t *testing.T) {
	a, b := &epochStage{}, &epochStage{}
	plain := StageFunc(func(ctx context.Context, up Iterator) Iterator { return up })
	p := New(numbers(1), a, plain, b)

	for epoch := 0; epoch < 4; epoch++ {
		SetEpochs(p, epoch)
	}

	for name, s := range map[string]*epochStage{"a": a, "b": b} {
		if len(s.calls) != 4 || s.calls[3] != 3 {
			t.Errorf("stage %s calls = %v, want 4 calls ending at 3", name, s.calls)
		}
	}
}

func TestCloseAll_ReverseOrder(t *testing.T) {
	var order []string
	first := &closeStage{name: "first", order: &order}
	second := &closeStage{name: "second", order: &order, err: errors.New("second failed")}
	third := &closeStage{name: "third", order: &order}

	err := CloseAll(New(numbers(0), first, second, third))
	if err == nil {
		t.Fatal("expected joined close error")
	}
	want := []string{"third", "second", "first"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Fatalf("close order = %v, want %v", order, want)
	}
}

func TestMap_HandlerDecidesSkipOrAbort(t *testing.T) {
	failOdd := func(s Sample) (Sample, error) {
		if s["n"].(int)%2 == 1 {
			return nil, fmt.Errorf("odd %d", s["n"])
		}
		return s, nil
	}

	skipped, err := Collect(context.Background(),
		Run(context.Background(), New(numbers(5), Map(failOdd, IgnoreAndContinue))), 0)
	if err != nil {
		t.Fatalf("skip handler: unexpected error %v", err)
	}
	if len(skipped) != 3 {
		t.Fatalf("skip handler: got %d samples, want 3", len(skipped))
	}

	got, err := Collect(context.Background(),
		Run(context.Background(), New(numbers(5), Map(failOdd, Reraise))), 0)
	if err == nil || err.Error() != "odd 1" {
		t.Fatalf("reraise handler: got err %v, want odd 1", err)
	}
	if len(got) != 1 {
		t.Fatalf("reraise handler: got %d samples before abort, want 1", len(got))
	}
}

func TestCollect_Max(t *testing.T) {
	got, err := Collect(context.Background(), Run(context.Background(), New(numbers(10))), 4)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d, want 4", len(got))
	}
}

func TestSample_URL(t *testing.T) {
	if got := (Sample{KeyURL: "a.tar"}).URL(); got != "a.tar" {
		t.Errorf("URL() = %q", got)
	}
	if got := (Sample{KeySourceURL: "b.tar"}).URL(); got != "b.tar" {
		t.Errorf("URL() = %q", got)
	}
	if got := (Sample{}).URL(); got != "" {
		t.Errorf("URL() = %q", got)
	}
}
