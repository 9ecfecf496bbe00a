package utils

import "sync"

// LoopMode is an universal working mode.
// If the struct has a LoopMode, it means its working logic seperates in one or many long-term running goroutines.
// The struct should call StartWorking() in its setup function and Stop() in its cleanup function.
// Each long-term running goroutine should work like:
/*
	lm.Add()
	defer lm.Done()
	for {
		select {
		case <-lm.D:
			return
		// case :...other goroutine logic
		}
	}
*/
type LoopMode struct {
	mu          sync.Mutex
	working     bool
	routinesNum int
	waitGroup   sync.WaitGroup
	D           chan struct{}
}

// NewLoop return a LoopMode.Param routines is the number of long-term running go routines(must >0)
func NewLoop(routines int) *LoopMode {
	if routines <= 0 {
		return nil
	}
	return &LoopMode{
		routinesNum: routines,
		D:           make(chan struct{}, routines),
	}
}

func (l *LoopMode) StartWorking() {
	l.mu.Lock()
	l.working = true
	l.mu.Unlock()
}

// Stop stops the long-term running go routines.If it's not working, return false; otherwise return true.
func (l *LoopMode) Stop() bool {
	l.mu.Lock()
	if !l.working {
		l.mu.Unlock()
		return false
	}
	l.working = false
	l.mu.Unlock()

	for i := 0; i < l.routinesNum; i++ {
		l.D <- struct{}{}
	}
	l.waitGroup.Wait()
	return true
}

func (l *LoopMode) Add() {
	l.waitGroup.Add(1)
}

func (l *LoopMode) Done() {
	l.waitGroup.Done()
}

func (l *LoopMode) IsWorking() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.working
}
