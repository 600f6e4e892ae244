package pricelens

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pricelens/pricelens/providers"
)

const (
	visionInstruction = "Provide me with a list of all products displayed in the image and suggest search terms I can use to find these products on eBay."

	// visionMaxTokens is the response ceiling for the describe call.
	// Truncation past this point is the provider's responsibility.
	visionMaxTokens = 300

	uploadMessagePrefix = "The following similar products were found on eBay:"
)

// ErrEmptyImage is returned when DescribeImage is called with no bytes.
var ErrEmptyImage = errors.New("pricelens: image is empty")

// DescribeImage sends the image inline to the multimodal model and returns
// its product summary verbatim. Provider failures propagate; no retry.
func (a *Assistant) DescribeImage(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}

	spanCtx, end := a.tracer.StartSpan(ctx, "vision.describe",
		WithSpanType(SpanTypeGeneration),
	)
	defer end()

	summary, err := a.engine.DescribeImage(spanCtx, providers.ImageRequest{
		Instruction: visionInstruction,
		Image:       image,
		MIMEType:    http.DetectContentType(image),
		Model:       a.visionModel,
		MaxTokens:   visionMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("pricelens: describe image: %w", err)
	}

	a.logger.Debug("image described", "summary_length", len(summary))
	return summary, nil
}

// uploadMessage builds the pseudo-user message synthesized from an image
// summary, applying the configured merge policy to the typed query.
func (a *Assistant) uploadMessage(summary, userQuery string) string {
	message := uploadMessagePrefix + summary
	if a.merge == MergeCombine && userQuery != "" {
		message += "\n\n" + userQuery
	}
	return message
}
