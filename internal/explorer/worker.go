package explorer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/justyntemme/photoframe/internal/catalog"
	"github.com/justyntemme/photoframe/internal/debug"
	"github.com/justyntemme/photoframe/internal/metrics"
	"github.com/justyntemme/photoframe/internal/photo"
	"github.com/justyntemme/photoframe/internal/store"
	"github.com/justyntemme/photoframe/internal/tristate"
)

// stage is one step kind of the incremental page display.
type stage int

const (
	stageDirections stage = iota
	stageNames
	stageSelection
	stageImage
	stageSelectAll
)

func (s stage) String() string {
	switch s {
	case stageDirections:
		return "directions"
	case stageNames:
		return "names"
	case stageSelection:
		return "selection"
	case stageImage:
		return "image"
	case stageSelectAll:
		return "select-all"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// frame is one level of the traversal stack.
type frame struct {
	node catalog.NodeID
	page int
}

// errContract wraps a recovered contract violation.
var errContract = errors.New("explorer: contract violation")

// worker owns the traversal state and the session transaction. Only its own
// goroutine touches these fields.
type worker struct {
	ctx       context.Context
	db        *store.DB
	opts      Options
	log       *zap.Logger
	requests  *mailbox[request]
	responses *mailbox[response]
	done      chan struct{}
	exitErr   *error

	tx     *store.Tx
	arena  *catalog.Arena
	stack  []frame
	pageID int64
	items  []catalog.NodeID // items of the displayed directory page

	stages []stage
	index  int
}

func (w *worker) run() {
	defer close(w.done)

	err := w.loop()
	if w.exitErr != nil {
		*w.exitErr = err
	}
	if err == nil {
		metrics.ExplorerSessions.WithLabelValues("closed").Inc()
		w.log.Info("explorer session closed", zap.Int64("page_id", w.pageID))
		return
	}

	if w.tx != nil {
		if rbErr := w.tx.Rollback(); rbErr != nil {
			w.log.Warn("rollback after failure", zap.Error(rbErr))
		}
		w.tx = nil
	}
	metrics.ExplorerSessions.WithLabelValues("failed").Inc()
	w.log.Error("explorer worker failed", zap.Int64("page_id", w.pageID), zap.Error(err))
	w.responses.put(response{update: FailureUpdate{Tag: Tag{w.pageID}, Err: err}})
}

// loop serves requests first and display work second, waiting only when
// there is neither. It returns nil after a close request.
func (w *worker) loop() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errContract, r)
		}
	}()

	for {
		if req, ok := w.requests.tryGet(); ok {
			finished, err := w.handle(req)
			if err != nil {
				return err
			}
			if finished {
				return nil
			}
			continue
		}
		if len(w.stages) > 0 {
			if err := w.step(); err != nil {
				return err
			}
			continue
		}
		w.requests.wait(w.opts.IdleWait)
	}
}

func (w *worker) handle(req request) (bool, error) {
	debug.Log(debug.EXPLORER, "request %T %+v", req, req)

	switch r := req.(type) {
	case startRequest:
		return false, w.start()
	case goIntoRequest:
		return false, w.goInto(r)
	case goToRequest:
		return false, w.goTo(r)
	case selectRequest:
		return false, w.selectItem(r)
	case selectAllRequest:
		return false, w.selectAll(r)
	case commitRequest:
		return false, w.commit(r.save)
	case closeRequest:
		if w.tx != nil {
			// closing without a commit discards pending edits
			if err := w.tx.Rollback(); err != nil {
				return true, fmt.Errorf("explorer: rollback on close: %w", err)
			}
			w.tx = nil
		}
		return true, nil
	default:
		panic(fmt.Sprintf("unknown request %T", req))
	}
}

func (w *worker) start() error {
	if w.arena != nil {
		panic("start requested twice")
	}
	tx, err := w.db.Begin(w.ctx)
	if err != nil {
		return err
	}
	w.tx = tx
	w.arena = catalog.NewArena(tx, w.opts.ItemsPerPage)

	root, err := w.arena.Root(w.ctx)
	if err != nil {
		return err
	}
	w.stack = []frame{{node: root}}
	w.pageID = 0
	return w.showPage()
}

func (w *worker) checkPage(pageID int64) {
	if pageID != w.pageID {
		panic(fmt.Sprintf("stale page id %d, current is %d", pageID, w.pageID))
	}
}

func (w *worker) top() *frame {
	return &w.stack[len(w.stack)-1]
}

func (w *worker) topIsDirectory() bool {
	return w.arena.Kind(w.top().node) == catalog.KindDirectory
}

func (w *worker) item(index int) catalog.NodeID {
	if index < 0 || index >= len(w.items) {
		panic(fmt.Sprintf("index %d out of range for page of %d items", index, len(w.items)))
	}
	return w.items[index]
}

func (w *worker) goInto(r goIntoRequest) error {
	w.checkPage(r.pageID)
	if !w.topIsDirectory() {
		panic("go into on a photo page")
	}
	w.stack = append(w.stack, frame{node: w.item(r.index)})
	w.pageID++
	return w.showPage()
}

func (w *worker) goTo(r goToRequest) error {
	w.checkPage(r.pageID)

	switch r.direction {
	case Up:
		if len(w.stack) < 2 {
			panic("up at the root")
		}
		w.stack = w.stack[:len(w.stack)-1]
	case Previous, Next:
		if !w.topIsDirectory() {
			panic(fmt.Sprintf("%s on a photo page", r.direction))
		}
		n, err := w.arena.NumPages(w.ctx, w.top().node)
		if err != nil {
			return err
		}
		f := w.top()
		if r.direction == Previous {
			if f.page == 0 {
				panic("previous on the first page")
			}
			f.page--
		} else {
			if f.page >= n-1 {
				panic("next on the last page")
			}
			f.page++
		}
	default:
		panic(fmt.Sprintf("unknown direction %d", int(r.direction)))
	}
	w.pageID++
	return w.showPage()
}

// showPage loads the top frame, sends its descriptor and schedules the
// display stages.
func (w *worker) showPage() error {
	f := w.top()
	desc := PageDescriptor{
		PageID:      w.pageID,
		Title:       w.arena.Name(f.node),
		IsDirectory: w.topIsDirectory(),
		Page:        f.page,
	}
	for _, fr := range w.stack[1:] {
		desc.Breadcrumbs = append(desc.Breadcrumbs, w.arena.Name(fr.node))
	}

	w.items = nil
	if desc.IsDirectory {
		n, err := w.arena.NumPages(w.ctx, f.node)
		if err != nil {
			return err
		}
		desc.NumPages = n
		desc.Empty = n == 0
		if n > 0 {
			if w.items, err = w.arena.Page(w.ctx, f.node, f.page); err != nil {
				return err
			}
		}
	}

	w.responses.put(response{page: &desc})
	debug.Log(debug.EXPLORER, "page %d: %q dir=%v page=%d/%d", desc.PageID, desc.Title, desc.IsDirectory, desc.Page, desc.NumPages)

	w.stages = []stage{stageDirections}
	if desc.IsDirectory {
		w.stages = append(w.stages, stageNames, stageSelection)
	} else {
		w.stages = append(w.stages, stageSelection, stageImage)
	}
	w.stages = append(w.stages, stageSelectAll)
	w.index = 0
	return nil
}

// requeue schedules s again. A stage already in progress restarts from its
// first item.
func (w *worker) requeue(s stage) {
	for i, pending := range w.stages {
		if pending == s {
			if i == 0 {
				w.index = 0
			}
			return
		}
	}
	w.stages = append(w.stages, s)
}

func (w *worker) emit(u Update) {
	w.responses.put(response{update: u})
}

func (w *worker) nextStage() {
	w.stages = w.stages[1:]
	w.index = 0
}

// step performs one unit of display work.
func (w *worker) step() error {
	s := w.stages[0]
	debug.Log(debug.EXPLORER_STAGE, "page %d: %s #%d", w.pageID, s, w.index)
	tag := Tag{w.pageID}
	f := w.top()

	switch s {
	case stageDirections:
		u := DirectionsUpdate{Tag: tag, Up: len(w.stack) > 1}
		if w.topIsDirectory() {
			n, err := w.arena.NumPages(w.ctx, f.node)
			if err != nil {
				return err
			}
			u.Back = f.page > 0
			u.Forward = f.page < n-1
			u.HasSelection = n > 0
		} else {
			u.HasSelection = true
		}
		u.Selection = w.arena.Selected(f.node)
		w.emit(u)
		w.nextStage()

	case stageNames:
		if w.index >= len(w.items) {
			w.nextStage()
			return nil
		}
		id := w.items[w.index]
		w.emit(NameUpdate{
			Tag:         tag,
			Index:       w.index,
			Name:        w.arena.Name(id),
			IsDirectory: w.arena.Kind(id) == catalog.KindDirectory,
		})
		w.index++

	case stageSelection:
		if !w.topIsDirectory() {
			w.emit(SelectionUpdate{Tag: tag, Index: 0, Selection: w.arena.Selected(f.node)})
			w.nextStage()
			return nil
		}
		if w.index >= len(w.items) {
			w.nextStage()
			return nil
		}
		w.emit(SelectionUpdate{Tag: tag, Index: w.index, Selection: w.arena.Selected(w.items[w.index])})
		w.index++

	case stageImage:
		w.emit(w.loadImage(tag, f.node))
		w.nextStage()

	case stageSelectAll:
		root := w.stack[0].node
		w.emit(SelectAllUpdate{Tag: tag, Selection: w.arena.Selected(root)})
		w.nextStage()

	default:
		panic(fmt.Sprintf("unknown stage %d", int(s)))
	}
	return nil
}

// loadImage decodes a photo for display. A failed decode is not fatal; the
// photo is reported as lost.
func (w *worker) loadImage(tag Tag, id catalog.NodeID) ImageUpdate {
	rel := w.arena.RelPath(id)
	u := ImageUpdate{Tag: tag, Path: rel, Caption: w.arena.Caption(id)}

	img, err := w.opts.Decoder.Decode(filepath.Join(w.opts.PhotoRoot, filepath.FromSlash(rel)), w.opts.Bounds)
	if err != nil {
		reason := "unreadable"
		if errors.Is(err, photo.ErrNotFound) {
			reason = "missing"
		}
		w.log.Warn("cannot display photo", zap.String("path", rel), zap.String("reason", reason), zap.Error(err))
		metrics.ImagesLost.Inc()
		u.Lost = true
		return u
	}
	u.Image = img
	return u
}

func (w *worker) selectItem(r selectRequest) error {
	w.checkPage(r.pageID)

	var target catalog.NodeID
	if w.topIsDirectory() {
		target = w.item(r.index)
	} else {
		if r.index != 0 {
			panic(fmt.Sprintf("index %d on a photo page", r.index))
		}
		target = w.top().node
	}
	if err := w.arena.SetSelected(w.ctx, target, tristate.FromBool(r.selected)); err != nil {
		return err
	}

	w.emit(SelectionUpdate{Tag: Tag{w.pageID}, Index: r.index, Selection: w.arena.Selected(target)})
	w.requeue(stageDirections)
	w.requeue(stageSelectAll)
	return nil
}

func (w *worker) selectAll(r selectAllRequest) error {
	w.checkPage(r.pageID)

	root := w.stack[0].node
	if err := w.arena.SetSelected(w.ctx, root, tristate.FromBool(r.selected)); err != nil {
		return err
	}

	w.emit(SelectAllUpdate{Tag: Tag{w.pageID}, Selection: w.arena.Selected(root)})
	w.requeue(stageDirections)
	w.requeue(stageSelection)
	return nil
}

// commit ends the session transaction and opens the next one. After a
// rollback every cached selection is re-read and redisplayed.
func (w *worker) commit(save bool) error {
	if w.tx == nil {
		panic("commit before start")
	}
	var err error
	if save {
		err = w.tx.Commit()
	} else {
		err = w.tx.Rollback()
	}
	w.tx = nil
	if err != nil {
		return fmt.Errorf("explorer: end transaction: %w", err)
	}
	w.log.Debug("explorer transaction ended", zap.Bool("saved", save))

	tx, err := w.db.Begin(w.ctx)
	if err != nil {
		return err
	}
	w.tx = tx
	w.arena.SetStore(tx)

	if !save {
		if err := w.arena.Refresh(w.ctx); err != nil {
			return err
		}
	}
	w.requeue(stageDirections)
	w.requeue(stageSelection)
	w.requeue(stageSelectAll)
	return nil
}
