package flatten

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/temirov/flatten/internal/types"
	"github.com/temirov/flatten/internal/utils"
)

// Renderer consumes a walk plan and its file sections in traversal order.
type Renderer interface {
	Begin(tree *types.TreeOutputNode) error
	Section(section types.FileOutput) error
	Flush(summary types.OutputSummary) error
}

type summaryTracker struct {
	files  int
	bytes  int64
	tokens int
}

func (tracker *summaryTracker) add(section types.FileOutput) {
	tracker.files++
	tracker.bytes += section.SizeBytes
	tracker.tokens += section.Tokens
}

func (tracker *summaryTracker) summary(model string) types.OutputSummary {
	outputSummary := types.OutputSummary{
		TotalFiles:  tracker.files,
		TotalSize:   utils.FormatFileSize(tracker.bytes),
		TotalBytes:  tracker.bytes,
		TotalTokens: tracker.tokens,
	}
	if tracker.tokens > 0 {
		outputSummary.Model = model
	}
	return outputSummary
}

// Flatten walks options.Root and feeds the tree and every included file section to
// renderer. Sections are produced and rendered concurrently but strictly in
// traversal order. The returned summary counts the sections actually rendered.
func Flatten(ctx context.Context, options Options, renderer Renderer) (types.OutputSummary, error) {
	plan, walkError := Walk(options)
	if walkError != nil {
		return types.OutputSummary{}, walkError
	}
	return Render(ctx, plan, options, renderer)
}

// Render streams the sections of an existing plan into renderer. A context
// cancelled before rendering starts yields its error without touching renderer.
func Render(ctx context.Context, plan Plan, options Options, renderer Renderer) (types.OutputSummary, error) {
	if contextError := ctx.Err(); contextError != nil {
		return types.OutputSummary{}, contextError
	}
	if beginError := renderer.Begin(plan.Tree); beginError != nil {
		return types.OutputSummary{}, beginError
	}

	tracker := &summaryTracker{}
	dispatchError := dispatchSections(
		ctx,
		func(streamCtx context.Context, sections chan<- types.FileOutput) error {
			return StreamSections(streamCtx, plan, options, sections)
		},
		func(section types.FileOutput) error {
			if sectionError := renderer.Section(section); sectionError != nil {
				return sectionError
			}
			tracker.add(section)
			return nil
		},
	)
	if dispatchError != nil {
		return types.OutputSummary{}, dispatchError
	}

	outputSummary := tracker.summary(options.TokenModel)
	if flushError := renderer.Flush(outputSummary); flushError != nil {
		return types.OutputSummary{}, flushError
	}
	return outputSummary, nil
}

func dispatchSections(
	ctx context.Context,
	produce func(context.Context, chan<- types.FileOutput) error,
	consume func(types.FileOutput) error,
) error {
	group, streamCtx := errgroup.WithContext(ctx)
	sections := make(chan types.FileOutput)

	group.Go(func() error {
		defer close(sections)
		return produce(streamCtx, sections)
	})

	group.Go(func() error {
		for {
			select {
			case <-streamCtx.Done():
				return streamCtx.Err()
			case section, ok := <-sections:
				if !ok {
					return nil
				}
				if err := consume(section); err != nil {
					return err
				}
			}
		}
	})

	return group.Wait()
}
