package media

import (
	"fmt"
	"io"
	"os"

	"github.com/contre95/jukebox/src/features/requesting"
	"github.com/contre95/jukebox/src/music"
)

// progressWriter reports the running byte count after every write.
type progressWriter struct {
	written  int64
	total    int64
	progress func(downloaded, total int64)
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.progress != nil {
		w.progress(w.written, w.total)
	}
	return len(p), nil
}

// copyTo writes src into a fresh file at dest, stopping one byte past opts.MaxBytes.
func copyTo(dest string, src io.Reader, total int64, opts requesting.RetrieveOptions) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if opts.MaxBytes > 0 {
		src = io.LimitReader(src, opts.MaxBytes+1)
	}
	counter := &progressWriter{total: total, progress: opts.Progress}
	if _, err := io.Copy(out, io.TeeReader(src, counter)); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	if opts.MaxBytes > 0 && counter.written > opts.MaxBytes {
		os.Remove(dest)
		return music.NewFetchError(music.FetchTooLarge, fmt.Sprintf("media exceeds %d bytes", opts.MaxBytes), nil)
	}
	return nil
}
