package packer

import (
	"bufio"
	"fmt"
	"io"
	"iter"

	"github.com/arloliu/msglc/codec"
	"github.com/arloliu/msglc/config"
	"github.com/arloliu/msglc/errs"
	"github.com/arloliu/msglc/format"
	"github.com/arloliu/msglc/toc"
	"github.com/arloliu/msglc/value"
)

// Pack writes root as a complete msglc blob to w: magic, a placeholder
// header, the MessagePack payload built depth-first alongside its table of
// contents, the encoded TOC trailer, and finally the real header patched
// back in over the placeholder.
//
// w must support Seek, since the header can only be finalized once the TOC's
// position and length are known (spec §4.4).
func Pack(root value.Value, w io.WriteSeeker, opts ...Option) error {
	s, err := newSession(opts...)
	if err != nil {
		return err
	}

	if s.gc {
		release := config.AcquireGC()
		defer release()
	}

	return s.run(w, func(bw *bufio.Writer) (*toc.Node, error) {
		s.enc = s.codec.NewStreamEncoder(bw)
		return s.packValue(root)
	})
}

// PackStream writes a single top-level map whose entries are produced by
// pairs, without materializing them as a value.Map first (spec §4.3
// "Streaming maps"). length must equal the number of pairs pairs yields, or
// PackStream returns an error wrapping errs.ErrEncodeCountMismatch.
func PackStream(length int, pairs iter.Seq2[string, value.Value], w io.WriteSeeker, opts ...Option) error {
	s, err := newSession(opts...)
	if err != nil {
		return err
	}

	if s.gc {
		release := config.AcquireGC()
		defer release()
	}

	return s.run(w, func(bw *bufio.Writer) (*toc.Node, error) {
		s.enc = s.codec.NewStreamEncoder(bw)

		return s.packStreamMap(length, pairs)
	})
}

func (s *session) packStreamMap(length int, pairs iter.Seq2[string, value.Value]) (*toc.Node, error) {
	start := uint64(s.enc.Written())

	if err := s.enc.EncodeMapLen(length); err != nil {
		return nil, err
	}

	keyed := make([]toc.KeyedChild, 0, length)

	for key, v := range pairs {
		if err := s.enc.EncodeString(key); err != nil {
			return nil, err
		}

		child, err := s.packValue(v)
		if err != nil {
			return nil, err
		}

		keyed = append(keyed, toc.KeyedChild{Key: key, Child: child})
	}

	if len(keyed) != length {
		return nil, fmt.Errorf("%w: declared %d, streamed %d", errs.ErrEncodeCountMismatch, length, len(keyed))
	}

	end := uint64(s.enc.Written())
	if end-start < uint64(s.cfg.SmallObjThreshold) {
		return toc.Leaf(start, end), nil
	}

	return &toc.Node{Start: start, End: end, Variant: toc.VariantKeyed, Keyed: keyed}, nil
}

// run drives the common magic/header/payload/TOC/patch sequence around
// buildPayload, which writes the payload through s.enc and returns the root
// TOC node.
func (s *session) run(w io.WriteSeeker, buildPayload func(bw *bufio.Writer) (*toc.Node, error)) error {
	if _, err := w.Write(format.Magic[:]); err != nil {
		return fmt.Errorf("%w: magic: %w", errs.ErrEncode, err)
	}

	var placeholder [format.HeaderSize]byte
	if _, err := w.Write(placeholder[:]); err != nil {
		return fmt.Errorf("%w: header placeholder: %w", errs.ErrEncode, err)
	}

	bw := bufio.NewWriterSize(w, s.cfg.WriteBuffer)

	root, err := buildPayload(bw)
	if err != nil {
		return fmt.Errorf("%w: payload: %w", errs.ErrEncode, err)
	}

	payloadLen := uint64(s.enc.Written())

	tocEnc := s.codec.NewStreamEncoder(bw)
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

// Codec exposes the codec.Codec registry to callers that want to select a
// non-default backend without importing the codec package directly.
func Codec(name string) (codec.Codec, error) { return codec.Get(name) }
