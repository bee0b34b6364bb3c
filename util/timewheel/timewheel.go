package timewheel

import (
	"container/list"
	"context"
	"time"

	"omapid/util/log"
)

type Task struct {
	delay time.Duration
	round int
	key   string
	job   func()
}

type TimeWheel struct {
	// interval between 2 ticks
	interval time.Duration

	// slots on the wheel, each slot has a list of tasks
	slots []*list.List
	// current pos of slots
	currentPos int
	slotNum    int

	// taskChan carries schedules and cancels (tasks without a job) in order
	taskChan chan *Task
	done     chan struct{}

	timer map[string]slotElement
}

type slotElement struct {
	slot    int
	element *list.Element
}

func NewTimeWheel(interval time.Duration, slotNum int) *TimeWheel {
	if interval <= 0 {
		interval = time.Second
	}
	if slotNum <= 0 {
		slotNum = 60
	}
	timeWheel := &TimeWheel{
		interval:   interval,
		slots:      make([]*list.List, slotNum),
		currentPos: 0,
		slotNum:    slotNum,
		taskChan:   make(chan *Task, 1024),
		done:       make(chan struct{}),
		timer:      make(map[string]slotElement),
	}
	for i := 0; i < slotNum; i++ {
		timeWheel.slots[i] = list.New()
	}
	return timeWheel
}

// Start runs the wheel until ctx is cancelled. Pending tasks are dropped.
func (tw *TimeWheel) Start(ctx context.Context) {
	go tw.loop(ctx)
}

// Schedule runs job after delay. A task already scheduled under the same
// key is replaced.
func (tw *TimeWheel) Schedule(delay time.Duration, key string, job func()) {
	select {
	case tw.taskChan <- &Task{delay: delay, key: key, job: job}:
	case <-tw.done:
	}
}

func (tw *TimeWheel) Cancel(key string) {
	select {
	case tw.taskChan <- &Task{key: key}:
	case <-tw.done:
	}
}

func (tw *TimeWheel) loop(ctx context.Context) {
	ticker := time.NewTicker(tw.interval)
	defer ticker.Stop()
	defer close(tw.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tw.handle()
		case task := <-tw.taskChan:
			if task.job == nil {
				tw.removeTask(task.key)
			} else {
				tw.addTask(task)
			}
		}
	}
}

func (tw *TimeWheel) handle() {
	l := tw.slots[tw.currentPos]
	for element := l.Front(); element != nil; {
		task := element.Value.(*Task)
		next := element.Next()
		// Task not for this round
		if task.round > 0 {
			task.round--
			element = next
			continue
		}
		// jobs may block on other goroutines, keep them off the wheel loop
		go run(task.job)
		l.Remove(element)
		if task.key != "" {
			delete(tw.timer, task.key)
		}
		element = next
	}
	// go to next slot
	if tw.currentPos == tw.slotNum-1 {
		tw.currentPos = 0
	} else {
		tw.currentPos++
	}
}

func run(job func()) {
	defer func() {
		if err := recover(); err != nil {
			log.Warn("timewheel task error: %v", err)
		}
	}()
	job()
}

func (tw *TimeWheel) addTask(task *Task) {
	if task.key != "" {
		tw.removeTask(task.key)
	}
	// get how many rounds before task and the slot for task
	round, slot := tw.getRoundAndSlot(task)
	task.round = round
	element := tw.slots[slot].PushBack(task)
	if task.key != "" {
		tw.timer[task.key] = slotElement{slot: slot, element: element}
	}
}

func (tw *TimeWheel) getRoundAndSlot(task *Task) (int, int) {
	ticks := int(task.delay / tw.interval)
	if ticks < 1 {
		ticks = 1
	}
	// currentPos is handled on the next tick, so tasks never fire early
	rounds := ticks / tw.slotNum
	slot := (tw.currentPos + ticks) % tw.slotNum
	return rounds, slot
}

func (tw *TimeWheel) removeTask(key string) {
	pos, exists := tw.timer[key]
	if !exists {
		return
	}
	tw.slots[pos.slot].Remove(pos.element)
	delete(tw.timer, key)
}
