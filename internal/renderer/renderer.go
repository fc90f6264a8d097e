package renderer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"postflow/internal/config"
	"postflow/internal/fileutil"
	"postflow/internal/logging"
	"postflow/internal/queue"
	"postflow/internal/services"
	"postflow/internal/stage"
)

// StageName labels renderer log lines and audit events.
const StageName = "renderer"

const (
	lineSpacing  = 1.35
	minFontScale = 0.45
)

// Renderer is the validated → rendered capability. It draws the display text
// of an item onto a branded canvas and stores the PNG under the render
// directory.
type Renderer struct {
	cfg     config.Render
	dir     string
	font    *truetype.Font
	logo    image.Image
	palette palette
	logger  *slog.Logger
}

type palette struct {
	background color.NRGBA
	primary    color.NRGBA
	shapes     []color.NRGBA
	gold       color.NRGBA
}

// New loads the font and optional logo named in cfg. A missing logo file is
// logged and ignored; an unreadable font is an error.
func New(cfg *config.Config, logger *slog.Logger) (*Renderer, error) {
	logger = logging.NewComponentLogger(logger, StageName)
	if strings.TrimSpace(cfg.Paths.RenderDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, StageName, "init", "render directory not configured", nil)
	}

	fnt, err := loadFont(cfg.Paths.FontPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, StageName, "load font", cfg.Paths.FontPath, err)
	}

	pal, err := parsePalette(cfg.Render)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, StageName, "parse palette", "", err)
	}

	var logo image.Image
	if path := strings.TrimSpace(cfg.Paths.LogoPath); path != "" {
		logo, err = loadImage(path)
		if err != nil {
			logging.WarnWithContext(logger, "logo unavailable; rendering without it", "logo_unavailable",
				logging.String("logo_path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.logo_path in config.toml"),
			)
			logo = nil
		}
	}

	return &Renderer{
		cfg:     cfg.Render,
		dir:     cfg.Paths.RenderDir,
		font:    fnt,
		logo:    logo,
		palette: pal,
		logger:  logger,
	}, nil
}

// SetLogger implements stage.LoggerAware.
func (r *Renderer) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// AssetPath returns where the image for itemID is written.
func (r *Renderer) AssetPath(itemID int64) string {
	return filepath.Join(r.dir, fmt.Sprintf("post_%d.png", itemID))
}

// Work renders item and returns the absolute asset path. Rendering the same
// item twice produces the same file.
func (r *Renderer) Work(ctx context.Context, item *queue.Item) (queue.Patch, error) {
	text := strings.TrimSpace(item.DisplayText)
	if text == "" {
		return queue.Patch{}, services.Wrap(services.ErrValidation, StageName, "render", "empty content", nil)
	}
	if err := ctx.Err(); err != nil {
		return queue.Patch{}, err
	}

	dc := r.draw(item.ID, text)

	path, err := filepath.Abs(r.AssetPath(item.ID))
	if err != nil {
		return queue.Patch{}, services.Wrap(services.ErrTransient, StageName, "resolve asset path", "", err)
	}
	if err := writePNG(dc, path); err != nil {
		return queue.Patch{}, services.Wrap(services.ErrTransient, StageName, "write asset", path, err)
	}

	logging.WithContext(ctx, r.logger).Debug(
		"asset rendered",
		logging.String(logging.FieldEventType, "asset_rendered"),
		logging.String("asset_path", path),
	)
	return queue.Patch{AssetRef: &path}, nil
}

// HealthCheck reports whether the render directory is usable.
func (r *Renderer) HealthCheck(ctx context.Context) stage.Health {
	info, err := os.Stat(r.dir)
	if err != nil {
		return stage.Unhealthy(StageName, err.Error())
	}
	if !info.IsDir() {
		return stage.Unhealthy(StageName, r.dir+" is not a directory")
	}
	return stage.Healthy(StageName)
}

func (r *Renderer) draw(itemID int64, text string) *gg.Context {
	width, height := r.cfg.Width, r.cfg.Height
	dc := gg.NewContext(width, height)

	dc.SetColor(r.palette.background)
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()
	r.drawShapes(dc, itemID)
	r.drawText(dc, text)
	r.drawLogo(dc)
	return dc
}

// drawShapes scatters translucent ellipses. The generator is seeded with the
// item id so the background is stable across re-renders.
func (r *Renderer) drawShapes(dc *gg.Context, itemID int64) {
	if len(r.palette.shapes) == 0 {
		return
	}
	w, h := float64(r.cfg.Width), float64(r.cfg.Height)
	rng := rand.New(rand.NewSource(itemID))
	between := func(lo, hi float64) float64 {
		return lo + rng.Float64()*(hi-lo)
	}
	for range r.cfg.Ellipses {
		ew := between(w*0.3, w*0.7)
		eh := between(h*0.3, h*0.6)
		x0 := between(-w*0.2, w*0.6)
		y0 := between(-h*0.2, h*0.6)
		fill := r.palette.shapes[rng.Intn(len(r.palette.shapes))]
		fill.A = uint8(60 + rng.Intn(61))
		dc.SetColor(fill)
		dc.DrawEllipse(x0+ew/2, y0+eh/2, ew/2, eh/2)
		dc.Fill()
	}
}

// drawText centers the wrapped text on the canvas, shrinking the font until
// the block fits inside the margins.
func (r *Renderer) drawText(dc *gg.Context, text string) {
	maxWidth := float64(r.cfg.Width - 2*r.cfg.Margin)
	maxHeight := float64(r.cfg.Height - 2*r.cfg.Margin)

	size := r.cfg.FontSize
	var lines []string
	var lineHeight float64
	for {
		dc.SetFontFace(r.face(size))
		lines = wrapLines(dc, text, r.cfg.WrapWidth, maxWidth)
		lineHeight = dc.FontHeight() * lineSpacing
		if float64(len(lines))*lineHeight <= maxHeight || size <= r.cfg.FontSize*minFontScale {
			break
		}
		size *= 0.9
	}

	cx := float64(r.cfg.Width) / 2
	blockHeight := float64(len(lines)) * lineHeight
	top := (float64(r.cfg.Height)-blockHeight)/2 + lineHeight/2

	dc.SetColor(r.palette.primary)
	for i, line := range lines {
		dc.DrawStringAnchored(line, cx, top+float64(i)*lineHeight, 0.5, 0.5)
	}

	// Short gold rule under the text block.
	ruleY := top + blockHeight - lineHeight/2 + lineHeight*0.6
	half := float64(r.cfg.Width) / 12
	dc.SetColor(r.palette.gold)
	dc.SetLineWidth(size / 8)
	dc.DrawLine(cx-half, ruleY, cx+half, ruleY)
	dc.Stroke()
}

func (r *Renderer) drawLogo(dc *gg.Context) {
	if r.logo == nil {
		return
	}
	bounds := r.logo.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return
	}
	logoWidth := int(float64(r.cfg.Width) * r.cfg.LogoFraction)
	logoHeight := bounds.Dy() * logoWidth / bounds.Dx()
	if logoWidth <= 0 || logoHeight <= 0 {
		return
	}
	scaled := image.NewNRGBA(image.Rect(0, 0, logoWidth, logoHeight))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), r.logo, bounds, draw.Over, nil)

	x := r.cfg.Width - logoWidth - r.cfg.Margin
	y := r.cfg.Height - logoHeight - int(float64(r.cfg.Margin)*0.6)
	dc.DrawImage(scaled, x, y)
}

func (r *Renderer) face(size float64) font.Face {
	return truetype.NewFace(r.font, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
}

// wrapLines breaks text into lines of at most wrapWidth characters and then
// splits any line wider than maxWidth pixels.
func wrapLines(dc *gg.Context, text string, wrapWidth int, maxWidth float64) []string {
	var lines []string
	for _, line := range wrapWords(text, wrapWidth) {
		if w, _ := dc.MeasureString(line); w <= maxWidth {
			lines = append(lines, line)
			continue
		}
		lines = append(lines, dc.WordWrap(line, maxWidth)...)
	}
	return lines
}

func wrapWords(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len([]rune(current))+1+len([]rune(word)) > width {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}
	return append(lines, current)
}

func writePNG(dc *gg.Context, path string) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		if err := dc.EncodePNG(w); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		return nil
	})
}

func loadFont(path string) (*truetype.Font, error) {
	data := goregular.TTF
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return truetype.Parse(data)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func parsePalette(cfg config.Render) (palette, error) {
	var pal palette
	var err error
	if pal.background, err = parseHex(cfg.Background); err != nil {
		return pal, err
	}
	if pal.primary, err = parseHex(cfg.Primary); err != nil {
		return pal, err
	}
	if pal.gold, err = parseHex(cfg.Gold); err != nil {
		return pal, err
	}
	for _, value := range []string{cfg.Primary, cfg.Accent, cfg.AccentDark} {
		c, err := parseHex(value)
		if err != nil {
			return pal, err
		}
		pal.shapes = append(pal.shapes, c)
	}
	return pal, nil
}

func parseHex(value string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", value)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", value)
	}
	return color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil
}
