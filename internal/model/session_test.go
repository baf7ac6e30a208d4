package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/aidetect-api/internal/imaging"
)

// TestNatureFixture runs the real network. It needs MODEL_PATH,
// MODEL_ORT_LIBRARY and a fixture image (testdata/nature.jpg, or NATURE_FIXTURE).
func TestNatureFixture(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping model test in short mode")
	}
	modelPath := os.Getenv("MODEL_PATH")
	libPath := os.Getenv("MODEL_ORT_LIBRARY")
	fixture := os.Getenv("NATURE_FIXTURE")
	if fixture == "" {
		fixture = "testdata/nature.jpg"
	}
	if modelPath == "" || libPath == "" {
		t.Skip("Set MODEL_PATH and MODEL_ORT_LIBRARY to run the model, and NATURE_FIXTURE to a nature photo")
	}
	for _, p := range []string{modelPath, libPath, fixture} {
		if _, err := os.Stat(p); err != nil {
			t.Skipf("Missing %s (set NATURE_FIXTURE to a nature photo if the fixture is absent): %v", p, err)
		}
	}

	session, err := NewLoader(Options{ModelPath: modelPath, LibraryPath: libPath}).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer session.Close()

	data, err := os.ReadFile(fixture)
	if err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	got, err := NewPredictor(session).Predict(imaging.ToTensor(img))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got.Class != LabelNature || got.Probability < 0.5 {
		t.Errorf("Expected nature with p >= 0.5, got %s (%.4f)", got.Class, got.Probability)
	}
}

func ioInfo(name string, dims ...int64) ort.InputOutputInfo {
	return ort.InputOutputInfo{
		Name:       name,
		Dimensions: ort.NewShape(dims...),
		DataType:   ort.TensorElementDataTypeFloat,
	}
}

func TestMetadataFrom(t *testing.T) {
	image := ioInfo("input", 1, 3, 299, 299)
	logits := ioInfo("logits", 1, 2)
	int64Image := image
	int64Image.DataType = ort.TensorElementDataTypeInt64

	cases := []struct {
		name    string
		inputs  []ort.InputOutputInfo
		outputs []ort.InputOutputInfo
		ok      bool
	}{
		{"static batch", []ort.InputOutputInfo{image}, []ort.InputOutputInfo{logits}, true},
		{"dynamic batch", []ort.InputOutputInfo{ioInfo("input", -1, 3, 299, 299)}, []ort.InputOutputInfo{ioInfo("logits", -1, 2)}, true},
		{"no inputs", nil, []ort.InputOutputInfo{logits}, false},
		{"two inputs", []ort.InputOutputInfo{image, image}, []ort.InputOutputInfo{logits}, false},
		{"two outputs", []ort.InputOutputInfo{image}, []ort.InputOutputInfo{logits, logits}, false},
		{"int64 input", []ort.InputOutputInfo{int64Image}, []ort.InputOutputInfo{logits}, false},
		{"imagenet head", []ort.InputOutputInfo{image}, []ort.InputOutputInfo{ioInfo("logits", 1, 1000)}, false},
		{"flat output", []ort.InputOutputInfo{image}, []ort.InputOutputInfo{ioInfo("logits", 2)}, false},
		{"224 input", []ort.InputOutputInfo{ioInfo("input", 1, 3, 224, 224)}, []ort.InputOutputInfo{logits}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			meta, err := metadataFrom(c.inputs, c.outputs)
			if !c.ok {
				if err == nil {
					t.Fatalf("Expected an error, got metadata %+v", meta)
				}
				return
			}
			if err != nil {
				t.Fatalf("metadataFrom failed: %v", err)
			}
			if meta.InputName != "input" || meta.OutputName != "logits" {
				t.Errorf("Unexpected names %q -> %q", meta.InputName, meta.OutputName)
			}
			if len(meta.Classes) != 2 || meta.OutputShape[1] != 2 {
				t.Errorf("Unexpected metadata %+v", meta)
			}
		})
	}

	for _, out := range [][]int64{{1, 1000}, {2}} {
		_, err := metadataFrom([]ort.InputOutputInfo{image}, []ort.InputOutputInfo{ioInfo("logits", out...)})
		if !errors.Is(err, ErrShapeMismatch) {
			t.Errorf("Output %v: expected ErrShapeMismatch, got %v", out, err)
		}
	}
}

func TestInferRejectsWrongLength(t *testing.T) {
	s := &Session{Metadata: Metadata{InputShape: []int64{-1, 3, 299, 299}}}

	_, err := s.Infer(&imaging.Tensor{})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
}

func stubEnvironment(t *testing.T, ready bool, open error) *int {
	t.Helper()
	destroyed := 0
	oldReady, oldInit, oldDestroy, oldOpen := envReady, envInit, envDestroy, openPool
	t.Cleanup(func() {
		envReady, envInit, envDestroy, openPool = oldReady, oldInit, oldDestroy, oldOpen
	})

	envReady = func() bool { return ready }
	envInit = func() error { return nil }
	envDestroy = func() error { destroyed++; return nil }
	openPool = func(Options) (*Session, error) { return nil, open }
	return &destroyed
}

func TestNewSessionFailureKeepsForeignEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	if err := os.WriteFile(path, []byte("onnx"), 0644); err != nil {
		t.Fatal(err)
	}
	openErr := errors.New("bad graph")

	destroyed := stubEnvironment(t, true, openErr)
	if _, err := newSession(Options{ModelPath: path}); !errors.Is(err, openErr) {
		t.Fatalf("Expected open error, got %v", err)
	}
	if *destroyed != 0 {
		t.Errorf("Environment initialized elsewhere was destroyed")
	}

	destroyed = stubEnvironment(t, false, openErr)
	if _, err := newSession(Options{ModelPath: path}); !errors.Is(err, openErr) {
		t.Fatalf("Expected open error, got %v", err)
	}
	if *destroyed != 1 {
		t.Errorf("Expected the environment created here to be destroyed once, got %d", *destroyed)
	}
}
