/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package views

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reflexstream/reflex-layer/internal/logging"
	"github.com/reflexstream/reflex-layer/internal/stats"
	spiconfig "github.com/reflexstream/reflex-layer/spi/config"
	spiconnection "github.com/reflexstream/reflex-layer/spi/connection"
	"github.com/reflexstream/reflex-layer/spi/errs"
	"github.com/reflexstream/reflex-layer/spi/eventmesh"
	"github.com/reflexstream/reflex-layer/spi/schema"
	"github.com/reflexstream/reflex-layer/spi/statestorage"
	spiview "github.com/reflexstream/reflex-layer/spi/view"
)

const (
	operationBind    = "bind"
	operationApply   = "apply"
	operationRead    = "read"
	operationRebuild = "rebuild"

	reasonAlreadyBound = "already-bound"
	reasonUnknownView  = "unknown-view"
	reasonApplyFailure = "apply-failure"
	reasonReadBusy     = "read-busy"
)

// materializedView is one named projection. The mutex serializes application
// to this view only; no lock spans views.
type materializedView struct {
	id            string
	boundTypes    []string
	applyFn       spiview.ApplyFunc
	mutex         sync.Mutex
	created       bool
	value         schema.Struct
	lastApplied   uint64
	lastAppliedAt time.Time
	consistent    bool
}

type viewManager struct {
	logger   *logging.Logger
	reporter *stats.Reporter

	connectionManager spiconnection.Manager
	stateManager      statestorage.Manager

	readTimeout      time.Duration
	failFastReads    bool
	persistToBackend bool
	pathPrefix       string

	// bindingsMutex guards the two maps, never a view's content
	bindingsMutex sync.RWMutex
	views         map[string]*materializedView
	typeIndex     map[string][]*materializedView
}

func NewViewManager(
	c *spiconfig.Config, connectionManager spiconnection.Manager,
	stateManager statestorage.Manager, statsService *stats.Service,
) (spiview.Manager, error) {

	logger, err := logging.NewLogger("ViewManager")
	if err != nil {
		return nil, err
	}

	persistToBackend := spiconfig.GetOrDefault(c, spiconfig.PropertyViewsPersistToBackend, false)
	pathPrefix := spiconfig.GetOrDefault(c, spiconfig.PropertyViewsBackendPathPrefix, "views/")

	return &viewManager{
		logger:            logger,
		reporter:          statsService.NewReporter("views"),
		connectionManager: connectionManager,
		stateManager:      stateManager,
		readTimeout:       spiconfig.GetOrDefault(c, spiconfig.PropertyViewsReadTimeout, time.Duration(0)),
		failFastReads:     spiconfig.GetOrDefault(c, spiconfig.PropertyViewsFailFastReads, false),
		persistToBackend:  persistToBackend,
		pathPrefix:        pathPrefix,
		views:             make(map[string]*materializedView),
		typeIndex:         make(map[string][]*materializedView),
	}, nil
}

func (vm *viewManager) BindView(
	viewId string, eventTypes []string, applyFn spiview.ApplyFunc,
) error {

	vm.bindingsMutex.Lock()
	defer vm.bindingsMutex.Unlock()

	if _, present := vm.views[viewId]; present {
		return errs.View("view already bound", viewId, operationBind, reasonAlreadyBound, nil)
	}

	view := &materializedView{
		id:         viewId,
		boundTypes: eventTypes,
		applyFn:    applyFn,
	}
	vm.views[viewId] = view
	for _, eventType := range eventTypes {
		vm.typeIndex[eventType] = append(vm.typeIndex[eventType], view)
	}
	return nil
}

func (vm *viewManager) OnEvent(
	event eventmesh.Event,
) error {

	vm.bindingsMutex.RLock()
	bound := vm.typeIndex[event.Type]
	vm.bindingsMutex.RUnlock()

	// A stale rejection on one view must not mask a genuine apply failure
	// on another; the mesh downgrades stale errors to duplicates
	var returnedErr error
	for _, view := range bound {
		if err := vm.apply(view, event); err != nil {
			if returnedErr == nil || errs.IsStaleOrDuplicate(returnedErr) {
				returnedErr = err
			}
		}
	}
	return returnedErr
}

func (vm *viewManager) apply(
	view *materializedView, event eventmesh.Event,
) error {

	view.mutex.Lock()
	defer view.mutex.Unlock()

	if view.created && event.SequenceMarker <= view.lastApplied {
		vm.reporter.Incr("apply.stale")
		return errs.View(
			"event not newer than last applied marker", view.id,
			operationApply, errs.ReasonStaleOrDuplicate, nil,
		)
	}

	newValue, err := view.applyFn(view.value, event)
	if err != nil {
		// Marker stays put so the same event can be retried
		view.consistent = false
		vm.reporter.Incr("apply.failure")
		return errs.View("apply function failed", view.id, operationApply, reasonApplyFailure, err)
	}

	view.value = newValue
	view.lastApplied = event.SequenceMarker
	view.lastAppliedAt = time.Now()
	view.consistent = true
	view.created = true
	vm.reporter.Incr("apply.success")

	vm.checkpoint(view)
	vm.backup(view)
	return nil
}

func (vm *viewManager) checkpoint(
	view *materializedView,
) {

	err := vm.stateManager.Set(view.id, &statestorage.Checkpoint{
		Timestamp:      view.lastAppliedAt,
		SequenceMarker: view.lastApplied,
		Consistent:     view.consistent,
	})
	if err != nil {
		vm.logger.Warnf("Failed to checkpoint view '%s' => %s", view.id, err.Error())
	}
}

// backup writes the view value through the backend as a durability
// backstop. The in-memory copy stays authoritative; a failing write is
// logged, never escalated.
func (vm *viewManager) backup(
	view *materializedView,
) {

	if !vm.persistToBackend {
		return
	}
	session, err := vm.connectionManager.Session()
	if err != nil {
		vm.logger.Debugf("Skipping backend backup of view '%s' => %s", view.id, err.Error())
		return
	}
	document := schema.Struct{
		"value": view.value,
		"seq":   view.lastApplied,
		"ts":    view.lastAppliedAt.UnixMilli(),
	}
	if err := session.WriteDocument(context.Background(), vm.pathPrefix+view.id, document); err != nil {
		vm.logger.Warnf("Failed to back up view '%s' => %s", view.id, err.Error())
	}
}

func (vm *viewManager) Read(
	viewId string,
) (spiview.Snapshot, error) {

	vm.bindingsMutex.RLock()
	view, present := vm.views[viewId]
	vm.bindingsMutex.RUnlock()

	if !present {
		return spiview.Snapshot{}, errs.View(
			"no view bound under this identifier", viewId, operationRead, reasonUnknownView, nil,
		)
	}

	if err := vm.lockForRead(view); err != nil {
		return spiview.Snapshot{}, err
	}
	defer view.mutex.Unlock()

	return spiview.Snapshot{
		ViewID:        view.id,
		Value:         view.value,
		LastApplied:   view.lastApplied,
		Consistent:    view.consistent,
		LastAppliedAt: view.lastAppliedAt,
	}, nil
}

// lockForRead acquires the view's mutex honoring the configured read
// behavior: fail fast while a write is in flight, bounded wait, or block.
func (vm *viewManager) lockForRead(
	view *materializedView,
) error {

	if vm.failFastReads {
		if !view.mutex.TryLock() {
			return errs.View(
				"write in flight", view.id, operationRead, reasonReadBusy, nil,
			)
		}
		return nil
	}

	if vm.readTimeout <= 0 {
		view.mutex.Lock()
		return nil
	}

	acquired := make(chan struct{})
	abandoned := atomic.Bool{}
	go func() {
		view.mutex.Lock()
		if !abandoned.CompareAndSwap(false, true) {
			// Reader gave up, nobody wants this lock anymore
			view.mutex.Unlock()
			return
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		return nil
	case <-time.After(vm.readTimeout):
		if !abandoned.CompareAndSwap(false, true) {
			// Lost the race, the lock is ours after all
			<-acquired
			return nil
		}
		return errs.View(
			"timed out waiting for write in flight", view.id, operationRead, reasonReadBusy, nil,
		)
	}
}

func (vm *viewManager) Rebuild(
	ctx context.Context, viewId string, paths ...string,
) error {

	vm.bindingsMutex.RLock()
	view, present := vm.views[viewId]
	vm.bindingsMutex.RUnlock()

	if !present {
		return errs.View(
			"no view bound under this identifier", viewId, operationRebuild, reasonUnknownView, nil,
		)
	}

	session, err := vm.connectionManager.Session()
	if err != nil {
		return errs.View("no backend session for rebuild", viewId, operationRebuild, "", err)
	}

	view.mutex.Lock()
	defer view.mutex.Unlock()

	eventType := ""
	if len(view.boundTypes) > 0 {
		eventType = view.boundTypes[0]
	}

	// Replay the fold from the initial value over the current source
	// documents. Synthetic markers restart at one; the checkpoint is
	// rewritten below so duplicate detection stays coherent.
	var value schema.Struct
	var marker uint64
	for _, path := range paths {
		document, err := session.ReadDocument(ctx, path)
		if err != nil {
			view.consistent = false
			return errs.View("failed to read source document", viewId, operationRebuild, "", err)
		}
		marker++
		value, err = view.applyFn(value, eventmesh.Event{
			Type:           eventType,
			Payload:        document,
			SourcePath:     path,
			SequenceMarker: marker,
			Timestamp:      time.Now(),
		})
		if err != nil {
			view.consistent = false
			return errs.View("apply function failed", viewId, operationRebuild, reasonApplyFailure, err)
		}
	}

	view.value = value
	view.lastApplied = marker
	view.lastAppliedAt = time.Now()
	view.consistent = true
	view.created = true
	vm.reporter.Incr("rebuild.success")

	vm.checkpoint(view)
	vm.backup(view)
	return nil
}

// Start primes duplicate detection from persisted checkpoints. Values are
// not recovered from state storage, so a resumed view stays inconsistent
// until events or a rebuild repopulate it.
func (vm *viewManager) Start() error {
	checkpoints, err := vm.stateManager.Get()
	if err != nil {
		return err
	}

	vm.bindingsMutex.RLock()
	defer vm.bindingsMutex.RUnlock()
	for viewId, checkpoint := range checkpoints {
		view, present := vm.views[viewId]
		if !present {
			continue
		}
		view.mutex.Lock()
		view.created = true
		view.lastApplied = checkpoint.SequenceMarker
		view.lastAppliedAt = checkpoint.Timestamp
		view.consistent = false
		view.mutex.Unlock()
		vm.logger.Debugf(
			"Resumed view '%s' at marker %d", viewId, checkpoint.SequenceMarker,
		)
	}
	return nil
}

func (vm *viewManager) Stop() error {
	return nil
}
