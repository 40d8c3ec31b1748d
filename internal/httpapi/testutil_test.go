package httpapi

import (
	"context"
	"image"

	"diffusiond/internal/device"
	"diffusiond/internal/pipeline"
)

// blockingBackend loads a pipeline whose Generate waits for release.
type blockingBackend struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Name() string { return "blocking" }

func (b *blockingBackend) Prober() device.Prober {
	return device.ProberFunc(func(context.Context) ([]device.GPU, error) { return nil, nil })
}

func (b *blockingBackend) Load(_ context.Context, s pipeline.Spec) (pipeline.Pipeline, error) {
	return &blockingPipeline{b: b, info: pipeline.Info{Model: s.Model, Variant: s.Variant, Device: s.Device}}, nil
}

type blockingPipeline struct {
	b    *blockingBackend
	info pipeline.Info
}

func (p *blockingPipeline) Generate(ctx context.Context, in pipeline.Params) (image.Image, error) {
	p.b.started <- struct{}{}
	select {
	case <-p.b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	img := image.NewNRGBA(image.Rect(0, 0, in.Width, in.Height))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img, nil
}

func (p *blockingPipeline) Info() pipeline.Info { return p.info }
func (p *blockingPipeline) Close() error        { return nil }
