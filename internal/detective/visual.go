package detective

import (
	"context"
	"fmt"
	"time"

	"tribunal/internal/evidence"
	"tribunal/internal/fanout"
	"tribunal/internal/rubric"

	"github.com/chromedp/chromedp"
)

// DiagramCounter counts the diagram-like elements of a rendered page.
type DiagramCounter interface {
	CountDiagrams(ctx context.Context, url string) (int, error)
}

// Visual inspects the rendered report for diagrams. Having no visual
// material is a valid "not found", never a failure.
type Visual struct {
	URL     string
	Counter DiagramCounter
}

func (v *Visual) Name() string                { return "vision_inspector" }
func (v *Visual) Category() evidence.Category { return evidence.Visual }

func (v *Visual) Inspect(ctx context.Context, goals []rubric.CriterionGoal, emit fanout.Emit[evidence.Record]) error {
	if v.URL == "" {
		for _, g := range goals {
			if err := emitGoal(emit, v.Name(), v.Category(), g, false, "", "", "no visual material supplied", 0.5); err != nil {
				return err
			}
		}
		return nil
	}

	counter := v.Counter
	if counter == nil {
		counter = &Chrome{}
	}
	n, countErr := counter.CountDiagrams(ctx, v.URL)
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, g := range goals {
		var err error
		switch {
		case countErr != nil:
			err = emitGoalFailure(emit, v.Name(), v.Category(), g, v.URL, countErr)
		case n > 0:
			err = emitGoal(emit, v.Name(), v.Category(), g, true, fmt.Sprintf("%d diagram element(s)", n), v.URL,
				fmt.Sprintf("rendered page contains %d figure, svg, canvas or img element(s)", n), min(0.9, 0.6+0.1*float64(n)))
		default:
			err = emitGoal(emit, v.Name(), v.Category(), g, false, "", v.URL, "rendered page contains no diagrams", 0.7)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// diagramSelector matches the elements counted as diagrams.
const diagramSelector = `figure, svg, canvas, img, object[type="image/svg+xml"]`

// Chrome counts diagrams by rendering the page in headless Chrome.
type Chrome struct {
	// Timeout bounds one page load. Zero means 30 seconds.
	Timeout time.Duration
}

func (c *Chrome) CountDiagrams(ctx context.Context, url string) (int, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var count int
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%q).length`, diagramSelector), &count),
	)
	if err != nil {
		return 0, fmt.Errorf("render %s: %w", url, err)
	}
	return count, nil
}
