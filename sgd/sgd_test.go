package sgd

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

type testSample struct {
	X2 float64
	Y2 float64
	XY float64
	X  float64
	Y  float64
}

func (t *testSample) Apply(x, y anydiff.Res) anydiff.Res {
	mk := x.Output().Creator().MakeNumeric
	a := anydiff.Scale(anydiff.Mul(x, x), mk(t.X2))
	b := anydiff.Scale(anydiff.Mul(y, y), mk(t.Y2))
	c := anydiff.Scale(anydiff.Mul(x, y), mk(t.XY))
	d := anydiff.Scale(x, mk(t.X))
	e := anydiff.Scale(y, mk(t.Y))
	return anydiff.Add(
		anydiff.Add(a, b),
		anydiff.Add(anydiff.Add(c, d), e),
	)
}

type testSampleList []*testSample

func newTestSampleList() testSampleList {
	// Together, these polynomials add up to 3x^2+3xy-2x+y^2.
	// The global minimum is (x = 4/3, y = -2).
	return testSampleList{
		{X2: 2, X: -1, XY: 0, Y2: 0.5},
		{X2: -1, X: 0, XY: 2, Y2: 0.5},
		{X2: 2, X: -1, XY: 1, Y2: 0},
	}
}

func (t testSampleList) Len() int {
	return len(t)
}

func (t testSampleList) Swap(i, j int) {
	t[i], t[j] = t[j], t[i]
}

func (t testSampleList) Slice(i, j int) SampleList {
	return append(testSampleList{}, t[i:j]...)
}

type testTrainer struct {
	X *anydiff.Var
	Y *anydiff.Var
}

func newTestTrainer(c anyvec.Creator) *testTrainer {
	return &testTrainer{
		X: anydiff.NewVar(c.MakeVector(1)),
		Y: anydiff.NewVar(c.MakeVector(1)),
	}
}

func (t *testTrainer) Fetch(s SampleList) (Batch, error) {
	return s, nil
}

func (t *testTrainer) Gradient(b Batch) anydiff.Grad {
	var cost anydiff.Res
	for _, x := range b.(testSampleList) {
		res := x.Apply(t.X, t.Y)
		if cost == nil {
			cost = res
		} else {
			cost = anydiff.Add(cost, res)
		}
	}
	grad := anydiff.Grad{
		t.X: t.X.Vector.Creator().MakeVector(1),
		t.Y: t.Y.Vector.Creator().MakeVector(1),
	}
	oneVec := t.X.Vector.Creator().MakeVectorData(
		t.X.Vector.Creator().MakeNumericList([]float64{1}),
	)
	cost.Propagate(oneVec, grad)
	return grad
}

func runTestSGD(t *testing.T, s *SGD, iters int) {
	t.Helper()
	stop := make(chan struct{})
	count := 0
	s.StatusFunc = func(batch SampleList) {
		count++
		if count >= iters {
			close(stop)
		}
	}
	if err := s.Run(stop); err != nil {
		t.Fatal(err)
	}
}

func checkOptimum(t *testing.T, tr *testTrainer) {
	t.Helper()
	x := tr.X.Vector.Data().([]float32)[0]
	y := tr.Y.Vector.Data().([]float32)[0]
	if math.Abs(float64(x)-4.0/3) > 1e-2 {
		t.Errorf("bad x value: %f", x)
	}
	if math.Abs(float64(y)+2) > 1e-2 {
		t.Errorf("bad y value: %f", y)
	}
}

func TestSGD(t *testing.T) {
	tr := newTestTrainer(anyvec32.DefaultCreator{})
	s := &SGD{
		Fetcher:    tr,
		Gradienter: tr,
		Samples:    newTestSampleList(),
		Rater:      ConstRater(0.0002),
		BatchSize:  1,
	}
	runTestSGD(t, s, 400000)
	checkOptimum(t, tr)
}

func TestAdam(t *testing.T) {
	tr := newTestTrainer(anyvec32.DefaultCreator{})
	s := &SGD{
		Fetcher:     tr,
		Gradienter:  tr,
		Transformer: &Adam{},
		Samples:     newTestSampleList(),
		Rater:       ConstRater(0.001),
		BatchSize:   1,
	}
	runTestSGD(t, s, 100000)
	checkOptimum(t, tr)
}

func TestMomentum(t *testing.T) {
	tr := newTestTrainer(anyvec32.DefaultCreator{})
	s := &SGD{
		Fetcher:     tr,
		Gradienter:  tr,
		Transformer: &Momentum{Momentum: 0.9},
		Samples:     newTestSampleList(),
		Rater:       ConstRater(0.00002),
		BatchSize:   1,
	}
	runTestSGD(t, s, 400000)
	checkOptimum(t, tr)
}

func TestStepDecay(t *testing.T) {
	r := &StepDecay{Initial: 0.1, Factor: 0.5, Every: 2}
	rates := map[float64]float64{
		0:   0.1,
		1.9: 0.1,
		2:   0.05,
		5:   0.025,
	}
	for epoch, expected := range rates {
		if actual := r.Rate(epoch); math.Abs(actual-expected) > 1e-8 {
			t.Errorf("epoch %f: expected rate %f but got %f", epoch, expected, actual)
		}
	}
}

func TestClipper(t *testing.T) {
	c := anyvec32.DefaultCreator{}
	v := anydiff.NewVar(c.MakeVector(2))
	grad := anydiff.Grad{
		v: c.MakeVectorData(c.MakeNumericList([]float64{3, 4})),
	}
	clipper := &Clipper{Threshold: 1}
	clipper.Transform(grad)
	data := grad[v].Data().([]float32)
	if math.Abs(float64(data[0])-0.6) > 1e-4 || math.Abs(float64(data[1])-0.8) > 1e-4 {
		t.Errorf("unexpected clipped gradient: %v", data)
	}

	grad[v] = c.MakeVectorData(c.MakeNumericList([]float64{0.3, 0.4}))
	clipper.Transform(grad)
	data = grad[v].Data().([]float32)
	if math.Abs(float64(data[0])-0.3) > 1e-4 || math.Abs(float64(data[1])-0.4) > 1e-4 {
		t.Errorf("gradient under threshold was changed: %v", data)
	}
}

func TestHashSplit(t *testing.T) {
	samples := make(hashSampleList, 1000)
	for i := range samples {
		samples[i] = byte(i % 256)
	}
	left, right := HashSplit(samples, 0.3)
	if left.Len()+right.Len() != samples.Len() {
		t.Fatal("partition sizes do not add up")
	}
	ratio := float64(left.Len()) / float64(samples.Len())
	if ratio < 0.1 || ratio > 0.5 {
		t.Errorf("unexpected left ratio: %f", ratio)
	}
	left1, right1 := HashSplit(samples, 0.3)
	if left1.Len() != left.Len() || right1.Len() != right.Len() {
		t.Error("partition is not deterministic")
	}
}

type hashSampleList []byte

func (h hashSampleList) Len() int {
	return len(h)
}

func (h hashSampleList) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h hashSampleList) Slice(i, j int) SampleList {
	return append(hashSampleList{}, h[i:j]...)
}

func (h hashSampleList) Hash(i int) []byte {
	return []byte{h[i]}
}
