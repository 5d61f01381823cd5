package pipeline

import (
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

func encodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, xerrors.Errorf("empty frame: %w", ErrEncode)
	}

	if quality <= 0 || quality > 100 {
		quality = 95
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, ErrEncode)
	}
	defer buf.Close()

	// The native buffer is freed on Close
	native := buf.GetBytes()
	out := make([]byte, len(native))
	copy(out, native)
	return out, nil
}
