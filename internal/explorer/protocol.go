package explorer

import (
	"fmt"
	"image"

	"github.com/justyntemme/photoframe/internal/tristate"
)

// Direction is a GoTo target relative to the current page.
type Direction int

const (
	Up Direction = iota
	Previous
	Next
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Previous:
		return "previous"
	case Next:
		return "next"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// PageDescriptor announces a newly displayed page. Its items follow as
// updates tagged with PageID.
type PageDescriptor struct {
	PageID      int64
	Title       string   // directory or file name, "" at the root
	Breadcrumbs []string // names from the root's child down to Title
	IsDirectory bool
	Page        int // page index within the directory
	NumPages    int
	Empty       bool // the catalog holds no photos
}

// Update is an incremental change for the page it is tagged with.
type Update interface {
	PageID() int64
}

// Tag carries the page id an update belongs to.
type Tag struct {
	Page int64
}

func (t Tag) PageID() int64 { return t.Page }

// DirectionsUpdate enables navigation controls. Selection is the combined
// state of what the page shows and is only meaningful with HasSelection.
type DirectionsUpdate struct {
	Tag
	Back, Forward, Up bool
	HasSelection      bool
	Selection         tristate.State
}

// NameUpdate names item Index of a directory page.
type NameUpdate struct {
	Tag
	Index       int
	Name        string
	IsDirectory bool
}

// SelectionUpdate reports the state of item Index. On a photo page Index is 0.
type SelectionUpdate struct {
	Tag
	Index     int
	Selection tristate.State
}

// ImageUpdate carries the decoded bitmap of a photo page. Lost is set when
// the file is missing or cannot be decoded; Image is nil then.
type ImageUpdate struct {
	Tag
	Image   image.Image
	Path    string
	Caption string
	Lost    bool
}

// SelectAllUpdate reports the selection of the whole catalog.
type SelectAllUpdate struct {
	Tag
	Selection tristate.State
}

// FailureUpdate is the last message of a session whose worker hit a fault.
// It is delivered regardless of page id.
type FailureUpdate struct {
	Tag
	Err error
}

type request interface {
	isRequest()
}

type startRequest struct{}

type goIntoRequest struct {
	pageID int64
	index  int
}

type goToRequest struct {
	pageID    int64
	direction Direction
}

type selectRequest struct {
	pageID   int64
	index    int
	selected bool
}

type selectAllRequest struct {
	pageID   int64
	selected bool
}

type commitRequest struct {
	save bool
}

type closeRequest struct{}

func (startRequest) isRequest()     {}
func (goIntoRequest) isRequest()    {}
func (goToRequest) isRequest()      {}
func (selectRequest) isRequest()    {}
func (selectAllRequest) isRequest() {}
func (commitRequest) isRequest()    {}
func (closeRequest) isRequest()     {}

// response is either a page descriptor or an update.
type response struct {
	page   *PageDescriptor
	update Update
}
