package renderer

import (
	"runtime"
	"testing"
)

func TestNewWorkerPool_Defaults(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{})
	if pool.GetNumWorkers() != runtime.NumCPU() {
		t.Errorf("Expected %d workers, got %d", runtime.NumCPU(), pool.GetNumWorkers())
	}
	if pool.TileSize() != DefaultPoolConfig().TileSize {
		t.Errorf("Expected tile size %d, got %d", DefaultPoolConfig().TileSize, pool.TileSize())
	}
}

func TestWorkerPool_Lifecycle(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{NumWorkers: 2, TileSize: 8})
	if pool.Running() {
		t.Error("Expected pool not to run before Start")
	}

	pool.Start()
	pool.Start() // second start is a no-op
	if !pool.Running() {
		t.Error("Expected pool to run after Start")
	}

	pool.Stop()
	pool.Stop() // second stop is a no-op
	if pool.Running() {
		t.Error("Expected pool to stop")
	}

	pool.Start()
	if pool.Running() {
		t.Error("Expected a stopped pool not to restart")
	}
}

func TestAccumulationBuffer_StoppedPool(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{NumWorkers: 1, TileSize: 8})
	pool.Stop()

	ab := NewAccumulationBuffer(pool)
	if err := ab.Reset(8, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := ab.Frame(0, uvShader); err != ErrPoolStopped {
		t.Errorf("Expected ErrPoolStopped, got %v", err)
	}
}
