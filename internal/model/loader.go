package model

import "sync"

// DefaultModelPath is where the exported network lives relative to the
// working directory.
const DefaultModelPath = "./model/model.onnx"

// Loader builds the Session once. Later calls to Load return the same
// Session, or the same error.
type Loader struct {
	opts Options
	open func(Options) (*Session, error)

	once    sync.Once
	session *Session
	err     error
}

func NewLoader(opts Options) *Loader {
	if opts.ModelPath == "" {
		opts.ModelPath = DefaultModelPath
	}
	return &Loader{opts: opts, open: newSession}
}

func (l *Loader) Load() (*Session, error) {
	l.once.Do(func() {
		s, err := l.open(l.opts)
		if err != nil {
			l.err = &LoadError{Path: l.opts.ModelPath, Err: err}
			return
		}
		l.session = s
	})
	return l.session, l.err
}
