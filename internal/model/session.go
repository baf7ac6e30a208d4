package model

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/aidetect-api/internal/imaging"
)

// Options configures how the network is loaded.
type Options struct {
	ModelPath      string
	LibraryPath    string
	PoolSize       int
	IntraOpThreads int
}

// boundSession is an AdvancedSession together with the tensors it was bound
// to. It can run only one forward pass at a time.
type boundSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (b *boundSession) destroy() {
	if b.session != nil {
		b.session.Destroy()
	}
	if b.input != nil {
		b.input.Destroy()
	}
	if b.output != nil {
		b.output.Destroy()
	}
}

// Session is the loaded network. It is read-only after construction and
// safe for concurrent use: each forward pass borrows a bound session from
// the pool.
type Session struct {
	Metadata Metadata
	pool     chan *boundSession
	all      []*boundSession
}

// onnxruntime environment hooks, replaced in tests.
var (
	envReady   = ort.IsInitialized
	envInit    = ort.InitializeEnvironment
	envDestroy = ort.DestroyEnvironment
	openPool   = openSessions
)

func newSession(opts Options) (*Session, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	created := false
	if !envReady() {
		if err := envInit(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
		created = true
	}

	s, err := openPool(opts)
	if err != nil {
		// An environment that was already up belongs to someone else.
		if created {
			envDestroy()
		}
		return nil, err
	}
	return s, nil
}

func openSessions(opts Options) (*Session, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model inputs and outputs: %w", err)
	}
	meta, err := metadataFrom(inputs, outputs)
	if err != nil {
		return nil, err
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer sessOpts.Destroy()
	if opts.IntraOpThreads > 0 {
		if err := sessOpts.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	size := opts.PoolSize
	if size < 1 {
		size = 1
	}
	s := &Session{
		Metadata: meta,
		pool:     make(chan *boundSession, size),
	}
	for i := 0; i < size; i++ {
		b, err := bind(opts.ModelPath, meta, sessOpts)
		if err != nil {
			s.destroySessions()
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		s.all = append(s.all, b)
		s.pool <- b
	}
	return s, nil
}

func bind(modelPath string, meta Metadata, sessOpts *ort.SessionOptions) (*boundSession, error) {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(concrete(meta.InputShape)...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(concrete(meta.OutputShape)...))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		sessOpts)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &boundSession{session: session, input: input, output: output}, nil
}

// metadataFrom checks the declared graph against the preprocessing pipeline:
// one float input of imaging.Shape and one float output of [N, len(Labels)].
func metadataFrom(inputs, outputs []ort.InputOutputInfo) (Metadata, error) {
	if len(inputs) != 1 || len(outputs) != 1 {
		return Metadata{}, fmt.Errorf("%w: want 1 input and 1 output, model has %d and %d",
			ErrShapeMismatch, len(inputs), len(outputs))
	}
	in, out := inputs[0], outputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat || out.DataType != ort.TensorElementDataTypeFloat {
		return Metadata{}, fmt.Errorf("model must use float32 tensors, got input %v output %v", in.DataType, out.DataType)
	}

	wantIn := imaging.Shape[:]
	wantOut := []int64{1, int64(len(Labels))}
	if err := checkShape("input", in.Dimensions, wantIn); err != nil {
		return Metadata{}, err
	}
	if err := checkShape("output", out.Dimensions, wantOut); err != nil {
		return Metadata{}, err
	}

	return Metadata{
		InputName:   in.Name,
		OutputName:  out.Name,
		InputShape:  append([]int64(nil), wantIn...),
		OutputShape: wantOut,
		Classes:     append([]Label(nil), Labels...),
	}, nil
}

// checkShape compares dims, allowing a dynamic (negative) batch dimension.
func checkShape(kind string, got []int64, want []int64) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: %s shape %v, want %v", ErrShapeMismatch, kind, got, want)
	}
	for i := range want {
		if got[i] == want[i] || (i == 0 && got[i] < 0) {
			continue
		}
		return fmt.Errorf("%w: %s shape %v, want %v", ErrShapeMismatch, kind, got, want)
	}
	return nil
}

func concrete(shape []int64) []int64 {
	out := make([]int64, len(shape))
	for i, d := range shape {
		if d < 0 {
			d = 1
		}
		out[i] = d
	}
	return out
}

// Infer runs one forward pass and returns a copy of the output logits.
func (s *Session) Infer(t *imaging.Tensor) ([]float32, error) {
	if want := s.inputLen(); t.Len() != want {
		return nil, fmt.Errorf("%w: tensor has %d values, model expects %d", ErrShapeMismatch, t.Len(), want)
	}

	b := <-s.pool
	defer func() { s.pool <- b }()

	t.CopyTo(b.input.GetData())

	if err := b.session.Run(); err != nil {
		return nil, err
	}

	return append([]float32(nil), b.output.GetData()...), nil
}

func (s *Session) inputLen() int {
	n := 1
	for _, d := range concrete(s.Metadata.InputShape) {
		n *= int(d)
	}
	return n
}

func (s *Session) destroySessions() {
	for _, b := range s.all {
		b.destroy()
	}
	s.all = nil
}

// Close releases every session and the onnxruntime environment.
func (s *Session) Close() {
	s.destroySessions()
	envDestroy()
}
