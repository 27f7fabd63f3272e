package detector

import (
	"fmt"
	"image"
	"image/color"
	"regexp"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"
)

const (
	defaultInputSize = 640
	nmsIoUThreshold  = 0.7
)

var letterboxFill = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// letterbox describes how a frame was scaled and padded into the square
// model input, so boxes can be mapped back to frame pixels.
type letterbox struct {
	gain   float64
	width  int
	height int
	padX   int
	padY   int
}

func newLetterbox(width, height, size int) letterbox {
	gain := min(float64(size)/float64(width), float64(size)/float64(height))
	nw := max(1, int(float64(width)*gain+0.5))
	nh := max(1, int(float64(height)*gain+0.5))
	return letterbox{gain: gain, width: nw, height: nh, padX: (size - nw) / 2, padY: (size - nh) / 2}
}

// toTensor resizes the frame into a size x size canvas and returns it as a
// planar RGB float32 slice in [0, 1], shaped 1x3xSxS.
func toTensor(frame *Frame, size int) ([]float32, letterbox) {
	lb := newLetterbox(frame.Width, frame.Height, size)
	resized := imaging.Resize(frame.Image(), lb.width, lb.height, imaging.Linear)
	canvas := imaging.New(size, size, letterboxFill)
	canvas = imaging.Paste(canvas, resized, image.Pt(lb.padX, lb.padY))

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			o := canvas.PixOffset(x, y)
			i := y*size + x
			data[i] = float32(canvas.Pix[o]) / 255
			data[plane+i] = float32(canvas.Pix[o+1]) / 255
			data[2*plane+i] = float32(canvas.Pix[o+2]) / 255
		}
	}
	return data, lb
}

type candidate struct {
	classID int
	score   float64
	x1, y1  float64
	x2, y2  float64
}

// decodeOutput turns a raw YOLOv8 output of shape [1, 4+nc, anchors]
// into detections in frame pixel space. Rows 0-3 hold the box center and
// size, the remaining rows hold one score per class.
func decodeOutput(raw []float32, rows, anchors int, lb letterbox, width, height int, labels map[int]string) ([]Detection, error) {
	if rows < 5 {
		return nil, fmt.Errorf("unexpected output rows: %d", rows)
	}
	if len(raw) < rows*anchors {
		return nil, fmt.Errorf("output too short: got %d values, want %d", len(raw), rows*anchors)
	}

	at := func(row, col int) float64 { return float64(raw[row*anchors+col]) }

	var cands []candidate
	for a := 0; a < anchors; a++ {
		best, bestID := 0.0, -1
		for c := 0; c < rows-4; c++ {
			if s := at(4+c, a); s > best {
				best, bestID = s, c
			}
		}
		if bestID < 0 || best <= ConfidenceThreshold {
			continue
		}
		cx, cy, w, h := at(0, a), at(1, a), at(2, a), at(3, a)
		cands = append(cands, candidate{
			classID: bestID,
			score:   best,
			x1:      unscale(cx-w/2, lb.padX, lb.gain, width),
			y1:      unscale(cy-h/2, lb.padY, lb.gain, height),
			x2:      unscale(cx+w/2, lb.padX, lb.gain, width),
			y2:      unscale(cy+h/2, lb.padY, lb.gain, height),
		})
	}

	kept := nonMaxSuppression(cands, nmsIoUThreshold)
	detections := make([]Detection, 0, len(kept))
	for _, c := range kept {
		detections = append(detections, Detection{
			Class:      labelFor(labels, c.classID),
			Confidence: c.score,
			BBox:       cornersToBox(c.x1, c.y1, c.x2, c.y2),
		})
	}
	return detections, nil
}

func unscale(v float64, pad int, gain float64, limit int) float64 {
	v = (v - float64(pad)) / gain
	return min(max(v, 0), float64(limit))
}

// nonMaxSuppression keeps the highest scoring box of each overlapping
// cluster, per class. The result is ordered by descending score.
func nonMaxSuppression(cands []candidate, iouThreshold float64) []candidate {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	var kept []candidate
	for _, c := range cands {
		overlaps := false
		for _, k := range kept {
			if k.classID == c.classID && iou(k, c) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}
	return kept
}

func iou(a, b candidate) float64 {
	ix := max(0, min(a.x2, b.x2)-max(a.x1, b.x1))
	iy := max(0, min(a.y2, b.y2)-max(a.y1, b.y1))
	inter := ix * iy
	union := (a.x2-a.x1)*(a.y2-a.y1) + (b.x2-b.x1)*(b.y2-b.y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func labelFor(labels map[int]string, id int) string {
	if name, ok := labels[id]; ok {
		return name
	}
	return strconv.Itoa(id)
}

var labelEntry = regexp.MustCompile(`(\d+)\s*:\s*['"]([^'"]*)['"]`)

// parseLabels reads the class table that ultralytics stores in the ONNX
// "names" metadata entry, e.g. {0: 'body', 1: 'title'}.
func parseLabels(meta string) map[int]string {
	labels := make(map[int]string)
	for _, m := range labelEntry.FindAllStringSubmatch(meta, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		labels[id] = m[2]
	}
	return labels
}
