package textsplitter

// options holds configuration settings for the text splitter.
type options struct {
	chunkSize int
}

// Option is a function type for configuring the splitter.
type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithChunkSize sets the length budget of a rendered chunk, in characters.
func WithChunkSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.chunkSize = size
		}
	}
}
