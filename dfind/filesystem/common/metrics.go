package common

import (
	"sync"
	"time"
)

// PerformanceMetrics defines the interface for performance tracking
type PerformanceMetrics interface {
	GetMetrics() map[string]interface{}
}

// BaseMetrics provides common fields used across different metrics types
type BaseMetrics struct {
	TotalOperations int64
	SuccessfulOps   int64
	FailedOps       int64
	LastOperation   time.Time
	Mu              sync.RWMutex
}

// UpdateBaseMetrics updates common metrics fields
func (bm *BaseMetrics) UpdateBaseMetrics(success bool) {
	bm.Mu.Lock()
	defer bm.Mu.Unlock()

	bm.TotalOperations++
	if success {
		bm.SuccessfulOps++
	} else {
		bm.FailedOps++
	}
	bm.LastOperation = time.Now()
}

// GetBaseMetrics returns the common metrics as a map
func (bm *BaseMetrics) GetBaseMetrics() map[string]interface{} {
	bm.Mu.RLock()
	defer bm.Mu.RUnlock()

	return map[string]interface{}{
		"total_operations": bm.TotalOperations,
		"successful_ops":   bm.SuccessfulOps,
		"failed_ops":       bm.FailedOps,
		"last_operation":   bm.LastOperation,
	}
}

// ScanMetrics accumulates counters over every scan run by one Scanner.
// A cancelled scan counts as a failed operation.
type ScanMetrics struct {
	BaseMetrics
	FilesFound     int64
	FilesHashed    int64
	HashFailures   int64
	GroupsFound    int64
	BytesReclaimed int64
	AverageTime    time.Duration
}

// RecordScan folds one finished scan into the totals
func (sm *ScanMetrics) RecordScan(start time.Time, success bool, found, hashed, failed, groups int, reclaimable int64) {
	sm.UpdateBaseMetrics(success)

	sm.Mu.Lock()
	defer sm.Mu.Unlock()

	sm.FilesFound += int64(found)
	sm.FilesHashed += int64(hashed)
	sm.HashFailures += int64(failed)
	sm.GroupsFound += int64(groups)
	sm.BytesReclaimed += reclaimable

	duration := time.Since(start)
	if sm.TotalOperations == 1 {
		sm.AverageTime = duration
	} else {
		sm.AverageTime = (sm.AverageTime*time.Duration(sm.TotalOperations-1) + duration) / time.Duration(sm.TotalOperations)
	}
}

// GetMetrics returns scan metrics as a map
func (sm *ScanMetrics) GetMetrics() map[string]interface{} {
	metrics := sm.GetBaseMetrics()
	sm.Mu.RLock()
	defer sm.Mu.RUnlock()

	metrics["files_found"] = sm.FilesFound
	metrics["files_hashed"] = sm.FilesHashed
	metrics["hash_failures"] = sm.HashFailures
	metrics["groups_found"] = sm.GroupsFound
	metrics["reclaimable_bytes"] = sm.BytesReclaimed
	metrics["average_time"] = sm.AverageTime
	return metrics
}
