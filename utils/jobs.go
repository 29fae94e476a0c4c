package utils

import "context"

// JobPool bounds the number of concurrent jobs
type JobPool struct {
	jobs chan struct{}
}

func (p *JobPool) Get() {
	<-p.jobs
}

// GetContext waits for a free slot or until ctx is done
func (p *JobPool) GetContext(ctx context.Context) (err error) {
	select {
	case <-p.jobs:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *JobPool) Put() {
	p.jobs <- struct{}{}
}

func NewJobPool(size int) (j *JobPool) {
	if size <= 0 {
		size = 1
	}
	j = &JobPool{jobs: make(chan struct{}, size)}
	for range size {
		j.jobs <- struct{}{}
	}
	return j
}
