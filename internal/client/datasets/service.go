// Package datasets manages the uploaded spreadsheets a client searches
// against: which one is current for this context, uploading new ones, and
// exporting annotated copies.
package datasets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/assettrack/internal/client/api"
	"github.com/dmitrijs2005/assettrack/internal/client/notify"
	"github.com/dmitrijs2005/assettrack/internal/client/session"
	"github.com/dmitrijs2005/assettrack/internal/common"
	"github.com/dmitrijs2005/assettrack/internal/logging"
)

const (
	MsgLoaded        = "Database loaded successfully."
	MsgNoDataset     = "No database found. Please upload a database first."
	MsgLatestFailed  = "Failed to fetch latest database."
	MsgListed        = "Databases loaded successfully."
	MsgNoneUploaded  = "No uploaded databases."
	MsgListFailed    = "Failed to fetch databases. Please try again."
	MsgNoFile        = "Please select a file to upload."
	MsgInvalidType   = "Invalid file type. Only Excel files are allowed."
	MsgDuplicateName = "A file with the same name already exists. Please rename the file or choose a different one."
	MsgUploaded      = "File uploaded successfully!"
	MsgUploadFailed  = "Upload failed. Please try again."
	MsgNoSelection   = "Please select a file to export."
	MsgExported      = "File exported successfully!"
	MsgExportMissing = "File not found. Please check the file ID."
	MsgExportFailed  = "Failed to export file. Please try again."
)

var ErrNoDataset = api.ErrNoDataset

// API is the slice of the REST client the service needs.
type API interface {
	LatestFile(ctx context.Context) (*api.LatestFile, error)
	Files(ctx context.Context) ([]api.FileInfo, error)
	Upload(ctx context.Context, path string) (*api.FileInfo, error)
	Export(ctx context.Context, id int64) (*api.Attachment, error)
}

// Pointer keeps the per-context current dataset.
type Pointer interface {
	SetDataset(ctx context.Context, d session.Dataset) error
	Dataset(ctx context.Context) (*session.Dataset, error)
	ClearDataset(ctx context.Context) error
}

type Service struct {
	api      API
	pointer  Pointer
	sink     Sink
	notifier notify.Notifier
	log      logging.Logger
}

func NewService(a API, p Pointer, sink Sink, n notify.Notifier, log logging.Logger) *Service {
	if n == nil {
		n = notify.Discard{}
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Service{api: a, pointer: p, sink: sink, notifier: n, log: log}
}

func (s *Service) notify(level notify.Level, msg string) {
	s.notifier.Notify(notify.Notice{Level: level, Message: msg})
}

// Latest returns the dataset this context works with. A remembered pointer
// is returned as is; otherwise the newest upload is fetched and remembered.
func (s *Service) Latest(ctx context.Context) (*session.Dataset, error) {
	if d, err := s.pointer.Dataset(ctx); err == nil && d != nil {
		return d, nil
	} else if err != nil {
		s.log.Warn(ctx, "read dataset pointer failed", "error", err)
	}

	lf, err := s.api.LatestFile(ctx)
	switch {
	case errors.Is(err, api.ErrNoDataset):
		s.notify(notify.Info, MsgNoDataset)
		return nil, ErrNoDataset
	case errors.Is(err, api.ErrUnauthorized):
		return nil, err
	case err != nil:
		s.notify(notify.Error, MsgLatestFailed)
		return nil, fmt.Errorf("latest dataset: %w", err)
	}

	d := session.Dataset{ID: lf.ID, Name: lf.Name}
	if err := s.pointer.SetDataset(ctx, d); err != nil {
		s.log.Warn(ctx, "store dataset pointer failed", "error", err)
	}
	s.notify(notify.Success, MsgLoaded)
	return &d, nil
}

// List returns every uploaded dataset, newest first as the backend orders
// them.
func (s *Service) List(ctx context.Context) ([]api.FileInfo, error) {
	files, err := s.api.Files(ctx)
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			s.notify(notify.Error, MsgListFailed)
		}
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	if len(files) == 0 {
		s.notify(notify.Info, MsgNoneUploaded)
		return nil, nil
	}
	s.notify(notify.Success, MsgListed)
	return files, nil
}

// IsSpreadsheet reports whether name carries an Excel extension.
func IsSpreadsheet(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".xlsx" || ext == ".xls"
}

// Upload sends a spreadsheet to the backend. The file must be an Excel
// workbook whose name is not already taken. A successful upload forgets
// this context's current dataset so the next search picks the new one.
func (s *Service) Upload(ctx context.Context, path string) (*api.FileInfo, error) {
	v := &common.Validator{}
	if err := v.Required("file", path).Err(); err != nil {
		s.notify(notify.Warning, MsgNoFile)
		return nil, err
	}
	if err := v.Check(IsSpreadsheet(path), "file", "not an Excel file").Err(); err != nil {
		s.notify(notify.Error, MsgInvalidType)
		return nil, err
	}

	existing, err := s.api.Files(ctx)
	if err != nil {
		s.log.Warn(ctx, "duplicate check skipped", "error", err)
	}
	name := filepath.Base(path)
	for _, f := range existing {
		if f.Name == name {
			s.notify(notify.Error, MsgDuplicateName)
			return nil, v.Check(false, "file", "name already uploaded").Err()
		}
	}

	info, err := s.api.Upload(ctx, path)
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			msg := MsgUploadFailed
			var se *api.StatusError
			if errors.As(err, &se) && se.Message != "" {
				msg = se.Message
			}
			s.notify(notify.Error, msg)
		}
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}

	if err := s.pointer.ClearDataset(ctx); err != nil {
		s.log.Warn(ctx, "clear dataset pointer failed", "error", err)
	}
	s.log.Info(ctx, "dataset uploaded", "name", name, "id", info.ID)
	s.notify(notify.Success, MsgUploaded)
	return info, nil
}

// Export downloads dataset id and hands it to the configured sink. It
// returns where the sink put it.
func (s *Service) Export(ctx context.Context, id int64) (string, error) {
	if id <= 0 {
		s.notify(notify.Warning, MsgNoSelection)
		return "", (&common.Validator{}).Check(false, "id", "no dataset selected").Err()
	}

	att, err := s.api.Export(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, api.ErrUnauthorized):
		case errors.Is(err, api.ErrNotFound):
			s.notify(notify.Error, MsgExportMissing)
		default:
			s.notify(notify.Error, MsgExportFailed)
		}
		return "", fmt.Errorf("export %d: %w", id, err)
	}

	loc, err := s.sink.Write(ctx, att.Filename, att.ContentType, att.Body)
	if err != nil {
		s.notify(notify.Error, MsgExportFailed)
		return "", fmt.Errorf("export %d: %w", id, err)
	}
	s.log.Info(ctx, "dataset exported", "id", id, "location", loc)
	s.notify(notify.Success, MsgExported)
	return loc, nil
}
