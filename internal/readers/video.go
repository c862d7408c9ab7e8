package readers

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/camsync/internal/align/qc"
	"github.com/banshee-data/camsync/internal/monitoring"
	"github.com/banshee-data/camsync/internal/trace"
)

// Crop is an axis-aligned pixel region. Any nil bound means "use the full
// extent" on that side. Right and Bottom are exclusive.
type Crop struct {
	Left   *int `json:"left"`
	Right  *int `json:"right"`
	Top    *int `json:"top"`
	Bottom *int `json:"bottom"`
}

func (c Crop) resolve(w, h int) (left, right, top, bottom int) {
	return intOr(c.Left, 0), intOr(c.Right, w), intOr(c.Top, 0), intOr(c.Bottom, h)
}

// VideoReader extracts an LED event trace from the brightness of a cropped
// video region. Decoding is delegated to an ffmpeg subprocess emitting 8-bit
// grayscale rawvideo over a pipe; the crop is applied in-process so the
// crop-box QC image can show the full frame.
type VideoReader struct {
	Path string
	// Rate is the nominal frame rate.
	Rate float64
	// Threshold is the detection threshold as a fraction of the estimated
	// peak brightness; nil means 0.9.
	Threshold *float64
	TimeStart *float64
	TimeEnd   *float64
	Crop      Crop
	// FFmpeg and FFprobe override the binary names, for tests.
	FFmpeg  string
	FFprobe string
}

// Source implements align.SignalReader.
func (r *VideoReader) Source() string { return r.Path }

// SampleRate implements align.SignalReader.
func (r *VideoReader) SampleRate() float64 { return r.Rate }

// TimeBounds implements align.SignalReader.
func (r *VideoReader) TimeBounds() (*float64, *float64) { return r.TimeStart, r.TimeEnd }

// RootPath strips the container extension from the source path.
func (r *VideoReader) RootPath() string {
	ext := filepath.Ext(r.Path)
	return strings.TrimSuffix(r.Path, ext)
}

// LoadTrace implements align.SignalReader. The returned trace has one
// sample per decoded frame. When no frame crosses the detection threshold
// the trace is all-zero; that is a warning for downstream stages, not an
// error here.
func (r *VideoReader) LoadTrace() (trace.Trace, error) {
	w, h, err := r.probeDimensions()
	if err != nil {
		return nil, err
	}

	brightness, err := r.cropBrightness(w, h)
	if err != nil {
		return nil, err
	}

	corrected, peak := analyzeBrightness(brightness)
	ledThreshold := floatOr(r.Threshold, 0.9) * peak

	tr := make(trace.Trace, len(corrected))
	exemplar := -1
	for i, v := range corrected {
		if v > ledThreshold {
			tr[i] = 1
			if exemplar < 0 {
				exemplar = i
			}
		}
	}
	if exemplar < 0 {
		monitoring.Warnf("no frame crossed the LED threshold in %s", r.Path)
	}

	r.writeQC(corrected, ledThreshold, exemplar, w, h)
	return tr, nil
}

// writeQC emits the brightness and crop-box diagnostic images. Failures are
// logged, never fatal: QC artifacts are a side channel of the alignment.
func (r *VideoReader) writeQC(corrected []float64, ledThreshold float64, exemplar, w, h int) {
	base := strings.TrimSuffix(r.Path, filepath.Ext(r.Path))
	if err := qc.SaveBrightnessPlot(base+"-qc-brightness.png", corrected, ledThreshold); err != nil {
		monitoring.Warnf("brightness plot for %s: %v", r.Path, err)
	}

	frameIdx := exemplar
	if frameIdx < 0 {
		frameIdx = 0
	}
	frame, err := r.grabFrame(frameIdx, w, h)
	if err != nil {
		monitoring.Warnf("exemplar frame %d of %s: %v", frameIdx, r.Path, err)
		return
	}
	left, right, top, bottom := r.Crop.resolve(w, h)
	if err := qc.SaveCropBox(base+"-qc-bbox.png", frame, left, right-1, top, bottom-1); err != nil {
		monitoring.Warnf("crop-box image for %s: %v", r.Path, err)
	}
}

// probeDimensions asks ffprobe for the frame geometry.
func (r *VideoReader) probeDimensions() (w, h int, err error) {
	ffprobe := r.FFprobe
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	out, err := exec.Command(ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0",
		r.Path).Output()
	if err != nil {
		return 0, 0, fmt.Errorf("probe %s: %w", r.Path, err)
	}
	fields := strings.Split(strings.TrimSpace(string(out)), ",")
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("probe %s: unexpected output %q", r.Path, out)
	}
	if w, err = strconv.Atoi(fields[0]); err != nil {
		return 0, 0, fmt.Errorf("probe %s: bad width %q", r.Path, fields[0])
	}
	if h, err = strconv.Atoi(fields[1]); err != nil {
		return 0, 0, fmt.Errorf("probe %s: bad height %q", r.Path, fields[1])
	}
	return w, h, nil
}

// cropBrightness decodes the video and reduces each frame to the mean
// intensity over the crop region. Time bounds are passed to ffmpeg so
// out-of-range frames are never decoded.
func (r *VideoReader) cropBrightness(w, h int) ([]float64, error) {
	ffmpeg := r.FFmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	args := []string{"-hide_banner", "-loglevel", "error"}
	if r.TimeStart != nil {
		args = append(args, "-ss", strconv.FormatFloat(*r.TimeStart, 'f', -1, 64))
	}
	if r.TimeEnd != nil {
		args = append(args, "-to", strconv.FormatFloat(*r.TimeEnd, 'f', -1, 64))
	}
	args = append(args, "-i", r.Path, "-f", "rawvideo", "-pix_fmt", "gray", "pipe:1")

	cmd := exec.Command(ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg for %s: %w", r.Path, err)
	}

	left, right, top, bottom := r.Crop.resolve(w, h)
	reader := bufio.NewReaderSize(stdout, w*h)
	frame := make([]byte, w*h)
	var brightness []float64
	for {
		if _, err := io.ReadFull(reader, frame); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("read frames from %s: %w", r.Path, err)
		}
		brightness = append(brightness, meanOverCrop(frame, w, left, right, top, bottom))
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("decode %s: %w (%s)", r.Path, err, strings.TrimSpace(stderr.String()))
	}
	return brightness, nil
}

// grabFrame re-decodes a single frame for the crop-box QC image.
func (r *VideoReader) grabFrame(idx, w, h int) (image.Image, error) {
	ffmpeg := r.FFmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	args := []string{"-hide_banner", "-loglevel", "error"}
	if r.TimeStart != nil {
		args = append(args, "-ss", strconv.FormatFloat(*r.TimeStart, 'f', -1, 64))
	}
	args = append(args,
		"-i", r.Path,
		"-vf", fmt.Sprintf("select=eq(n\\,%d)", idx),
		"-vframes", "1",
		"-f", "rawvideo", "-pix_fmt", "gray", "pipe:1")

	out, err := exec.Command(ffmpeg, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("grab frame %d of %s: %w", idx, r.Path, err)
	}
	if len(out) < w*h {
		return nil, fmt.Errorf("grab frame %d of %s: short read (%d of %d bytes)", idx, r.Path, len(out), w*h)
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	copy(img.Pix, out[:w*h])
	return img, nil
}

func meanOverCrop(frame []byte, stride, left, right, top, bottom int) float64 {
	var sum float64
	var n int
	for y := top; y < bottom; y++ {
		row := frame[y*stride : y*stride+stride]
		for x := left; x < right; x++ {
			sum += float64(row[x])
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// noiseEpsilon separates genuine brightness from floor-corrected noise when
// estimating the peak-on level.
const noiseEpsilon = 2.0

// analyzeBrightness subtracts the noise floor (the mode of a 100-bin
// histogram) and estimates the peak-on intensity as the 90th percentile of
// samples at or above their own 75th percentile, a two-stage robust peak
// tolerant of partial occlusion. Returns the floor-corrected trace and the
// peak estimate.
func analyzeBrightness(brightness []float64) ([]float64, float64) {
	if len(brightness) == 0 {
		return nil, 0
	}

	lo, hi := brightness[0], brightness[0]
	for _, v := range brightness {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	const bins = 100
	width := (hi - lo) / bins
	floor := lo
	if width > 0 {
		counts := make([]int, bins)
		for _, v := range brightness {
			b := int((v - lo) / width)
			if b >= bins {
				b = bins - 1
			}
			counts[b]++
		}
		mode := 0
		for b, c := range counts {
			if c > counts[mode] {
				mode = b
			}
		}
		floor = lo + float64(mode+1)*width
	}

	corrected := make([]float64, len(brightness))
	maxCorrected := math.Inf(-1)
	var bright []float64
	for i, v := range brightness {
		corrected[i] = v - floor
		if corrected[i] > maxCorrected {
			maxCorrected = corrected[i]
		}
		if corrected[i] > noiseEpsilon {
			bright = append(bright, corrected[i])
		}
	}
	if len(bright) == 0 {
		return corrected, maxCorrected
	}

	sort.Float64s(bright)
	mid := stat.Quantile(0.75, stat.LinInterp, bright, nil)
	var upper []float64
	for _, v := range bright {
		if v >= mid {
			upper = append(upper, v)
		}
	}
	peak := stat.Quantile(0.9, stat.LinInterp, upper, nil)
	return corrected, peak
}
