package analyzer

import (
	"image"
	"image/draw"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// metricsCalculator implements MetricsCalculator with Gonum statistics
type metricsCalculator struct {
	slicePool sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator using Gonum
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

func (mc *metricsCalculator) Focus(frame models.Frame) models.FocusMetrics {
	if frame.Empty() {
		return models.FocusMetrics{}
	}
	gray := toGray(frame.Image)
	return models.FocusMetrics{
		LaplacianVar: mc.CalculateLaplacianVariance(gray),
		Brightness:   mc.CalculateBrightness(gray),
	}
}

// CalculateLaplacianVariance computes the variance of the 4-neighbour Laplacian
func (mc *metricsCalculator) CalculateLaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)
	if cap(data) < (width-2)*(height-2) {
		data = make([]float64, 0, (width-2)*(height-2))
	}
	defer func() { mc.slicePool.Put(data[:0]) }()

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)

			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	return stat.Variance(data, nil)
}

// CalculateBrightness computes mean gray level, splitting large frames across CPUs
func (mc *metricsCalculator) CalculateBrightness(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	if width*height < 100000 {
		return sumRows(gray, bounds.Min.Y, bounds.Max.Y) / float64(width*height)
	}

	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	results := make(chan float64, numWorkers)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		startY := bounds.Min.Y + i*rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > bounds.Max.Y {
			endY = bounds.Max.Y
		}
		if startY >= endY {
			break
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			results <- sumRows(gray, startY, endY)
		}(startY, endY)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var total float64
	for partial := range results {
		total += partial
	}
	return total / float64(width*height)
}

func sumRows(gray *image.Gray, startY, endY int) float64 {
	bounds := gray.Bounds()
	var total float64
	for y := startY; y < endY; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			total += float64(gray.GrayAt(x, y).Y)
		}
	}
	return total
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}
