// Package combine implements msglc's combiner: merging several already-packed
// blobs into one, by copying each one's payload bytes verbatim and grafting
// a rebased copy of its TOC, without re-encoding a single value (spec §4.6).
package combine

import (
	"bufio"
	"fmt"
	"io"

	"github.com/arloliu/msglc/codec"
	"github.com/arloliu/msglc/config"
	"github.com/arloliu/msglc/errs"
	"github.com/arloliu/msglc/format"
	"github.com/arloliu/msglc/internal/nameset"
	"github.com/arloliu/msglc/internal/options"
	"github.com/arloliu/msglc/internal/pool"
	"github.com/arloliu/msglc/reader"
	"github.com/arloliu/msglc/source"
	"github.com/arloliu/msglc/toc"
)

// FileRef names one input to Combine: Source must support random-access
// reads of an already-packed msglc blob, Name is optional ("" means
// "no name", spec §4.6).
type FileRef struct {
	Source source.Source
	Name   string
}

type combineOptions struct {
	cfg   *config.Config
	codec codec.Codec
}

// Option configures Combine.
type Option = options.Option[*combineOptions]

// WithConfig overrides the config.Config Combine uses for its copy chunk size.
func WithConfig(cfg *config.Config) Option {
	return options.NoError(func(o *combineOptions) { o.cfg = cfg })
}

// WithCodec overrides the codec.Codec backend used to encode the combined
// header and TOC.
func WithCodec(c codec.Codec) Option {
	return options.NoError(func(o *combineOptions) { o.codec = c })
}

// countingWriter wraps an io.Writer and counts bytes written through it,
// whether they arrive via a StreamEncoder or a raw payload copy, so combine
// can compute each input's base offset B_i in the output payload.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err
}

// Combine writes refs, in order, as a single msglc blob to w (spec §4.6).
// If every ref has a non-empty Name the result is a keyed combination (a
// top-level map); if none does, it is positional (a top-level sequence);
// mixing named and unnamed refs is an error.
func Combine(w io.WriteSeeker, refs []FileRef, opts ...Option) error {
	co := &combineOptions{cfg: config.Current(), codec: codec.Default()}
	if err := options.Apply(co, opts...); err != nil {
		return err
	}

	keyed, err := checkNaming(refs)
	if err != nil {
		return err
	}

	if _, err := w.Write(format.Magic[:]); err != nil {
		return fmt.Errorf("%w: magic: %w", errs.ErrEncode, err)
	}

	var placeholder [format.HeaderSize]byte
	if _, err := w.Write(placeholder[:]); err != nil {
		return fmt.Errorf("%w: header placeholder: %w", errs.ErrEncode, err)
	}

	bw := bufio.NewWriterSize(w, co.cfg.WriteBuffer)
	cw := &countingWriter{w: bw}

	root, err := combinePayload(cw, refs, keyed, co)
	if err != nil {
		return fmt.Errorf("%w: payload: %w", errs.ErrEncode, err)
	}
	payloadLen := uint64(cw.n)

	tocEnc := co.codec.NewStreamEncoder(bw)
	if err := toc.Encode(root, tocEnc); err != nil {
		return fmt.Errorf("%w: toc: %w", errs.ErrEncode, err)
	}
	tocLen := uint64(tocEnc.Written())

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", errs.ErrEncode, err)
	}

	if _, err := w.Seek(int64(len(format.Magic)), io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrNotSeekable, err)
	}

	// toc_start is absolute to the start of the file (spec §3.3, §6.1), not
	// relative to the payload origin.
	hdr := format.Header{TOCStart: uint64(format.PayloadStart) + payloadLen, TOCLength: tocLen}
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("%w: header: %w", errs.ErrEncode, err)
	}

	_, err = w.Seek(0, io.SeekEnd)

	return err
}

// checkNaming validates the all-named-or-none-named invariant and, for a
// keyed combination, that every name is unique.
func checkNaming(refs []FileRef) (keyed bool, err error) {
	if len(refs) == 0 {
		return false, nil
	}

	named := refs[0].Name != ""
	for _, r := range refs {
		if (r.Name != "") != named {
			return false, errs.ErrCombineNameMix
		}
	}

	if named {
		tracker := nameset.NewTracker()
		for _, r := range refs {
			if err := tracker.Track(r.Name); err != nil {
				return false, err
			}
		}
	}

	return named, nil
}

// combinePayload writes the combined payload's container header, then each
// ref's key (if keyed) followed by its payload bytes copied verbatim, and
// returns the top-level TOC node wrapping each ref's rebased root.
func combinePayload(cw *countingWriter, refs []FileRef, keyed bool, co *combineOptions) (*toc.Node, error) {
	enc := co.codec.NewStreamEncoder(cw)

	if keyed {
		if err := enc.EncodeMapLen(len(refs)); err != nil {
			return nil, err
		}
	} else {
		if err := enc.EncodeArrayLen(len(refs)); err != nil {
			return nil, err
		}
	}

	var (
		keyedChildren []toc.KeyedChild
		positional    []*toc.Node
	)

	for _, ref := range refs {
		if keyed {
			if err := enc.EncodeString(ref.Name); err != nil {
				return nil, err
			}
		}

		_, childRoot, err := reader.ReadHeaderAndTOC(ref.Source, co.codec)
		if err != nil {
			return nil, err
		}

		base := uint64(cw.n)
		if err := copyPayload(cw, ref.Source, childRoot.End, co.cfg.CopyChunk); err != nil {
			return nil, err
		}

		toc.Shift(childRoot, base)

		if keyed {
			keyedChildren = append(keyedChildren, toc.KeyedChild{Key: ref.Name, Child: childRoot})
		} else {
			positional = append(positional, childRoot)
		}
	}

	node := &toc.Node{Start: 0, End: uint64(cw.n)}
	if keyed {
		node.Variant = toc.VariantKeyed
		node.Keyed = keyedChildren
	} else {
		node.Variant = toc.VariantPositional
		node.Positional = positional
	}

	return node, nil
}

// copyPayload streams [0,payloadLen) of src's payload region into cw in
// chunkSize pieces, never decoding a single value (spec §4.6 step 3b). Each
// chunk is staged through a pooled copy buffer rather than written straight
// from the slice src.ReadAt hands back, so repeated combines don't churn one
// allocation per chunk.
func copyPayload(cw *countingWriter, src source.Source, payloadLen uint64, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = config.Defaults().CopyChunk
	}

	buf := pool.GetCopyBuffer()
	defer pool.PutCopyBuffer(buf)

	var offset uint64
	for offset < payloadLen {
		n := uint64(chunkSize)
		if remaining := payloadLen - offset; remaining < n {
			n = remaining
		}

		chunk, err := src.ReadAt(format.PayloadStart+int64(offset), int64(n))
		if err != nil {
			return fmt.Errorf("%w: copy payload: %w", errs.ErrTruncatedPayload, err)
		}

		buf.Reset()
		buf.MustWrite(chunk)
		if _, err := buf.WriteTo(cw); err != nil {
			return fmt.Errorf("%w: copy payload: %w", errs.ErrEncode, err)
		}

		offset += n
	}

	return nil
}
