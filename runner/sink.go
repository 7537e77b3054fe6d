package runner

import "context"

// HitSink receives every recorded hit in addition to the output files.
type HitSink interface {
	SaveHit(ctx context.Context, pipeline, status string, hit HitResult) error
	Close() error
}
