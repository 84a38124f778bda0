package backup

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/searchops/meilivault/internal/models"
)

// archiveRoot is the top-level directory inside every backup archive. Restore
// accepts any directory whose name contains it, matching archives produced by
// earlier tooling.
const archiveRoot = "meilisearch_backup"

const (
	infoFile      = "info.json"
	settingsFile  = "settings.json"
	documentsFile = "documents.json"
)

// IndexExport is one index's full contents inside an archive.
type IndexExport struct {
	Info      models.IndexInfo
	Settings  models.IndexSettings
	Documents []map[string]interface{}
}

// archiveWriter streams index exports into a zip archive.
type archiveWriter struct {
	zw *zip.Writer
}

func newArchiveWriter(w io.Writer) *archiveWriter {
	return &archiveWriter{zw: zip.NewWriter(w)}
}

// WriteIndex adds one index's info, settings and documents to the archive.
func (a *archiveWriter) WriteIndex(export *IndexExport) error {
	dir := path.Join(archiveRoot, export.Info.UID)

	if err := a.writeJSON(path.Join(dir, infoFile), export.Info); err != nil {
		return err
	}
	if export.Settings != nil {
		if err := a.writeJSON(path.Join(dir, settingsFile), export.Settings); err != nil {
			return err
		}
	}
	docs := export.Documents
	if docs == nil {
		docs = []map[string]interface{}{}
	}
	return a.writeJSON(path.Join(dir, documentsFile), docs)
}

func (a *archiveWriter) writeJSON(name string, v interface{}) error {
	f, err := a.zw.Create(name)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", name, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	return nil
}

func (a *archiveWriter) Close() error {
	return a.zw.Close()
}

// ReadArchive parses a backup archive into per-index exports. The returned
// map is keyed by index UID.
func ReadArchive(r io.ReaderAt, size int64) (map[string]*IndexExport, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	exports := make(map[string]*IndexExport)
	found := false

	for _, f := range zr.File {
		parts := strings.Split(path.Clean(f.Name), "/")
		// Expect <root>/<uid>/<file> with root containing archiveRoot.
		if len(parts) != 3 || !strings.Contains(parts[0], archiveRoot) {
			continue
		}
		found = true
		uid := parts[1]
		if uid == "" || uid == ".." {
			continue
		}

		export := exports[uid]
		if export == nil {
			export = &IndexExport{Info: models.IndexInfo{UID: uid}}
			exports[uid] = export
		}

		switch parts[2] {
		case infoFile:
			if err := readZipJSON(f, &export.Info); err != nil {
				return nil, fmt.Errorf("index %s: %w", uid, err)
			}
			if export.Info.UID == "" {
				export.Info.UID = uid
			}
		case settingsFile:
			if err := readZipJSON(f, &export.Settings); err != nil {
				return nil, fmt.Errorf("index %s: %w", uid, err)
			}
		case documentsFile:
			if err := readZipJSON(f, &export.Documents); err != nil {
				return nil, fmt.Errorf("index %s: %w", uid, err)
			}
		}
	}

	if !found {
		return nil, fmt.Errorf("archive does not contain a %s directory", archiveRoot)
	}
	return exports, nil
}

func readZipJSON(f *zip.File, v interface{}) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", f.Name, err)
	}
	return nil
}

// restoreOrder returns archive UIDs with regular indexes first, sorted, and
// the documents index last. The documents index carries vector settings that
// must be rewritten after everything else is in place.
func restoreOrder(exports map[string]*IndexExport) []string {
	uids := make([]string, 0, len(exports))
	hasDocuments := false
	for uid := range exports {
		if uid == documentsIndexUID {
			hasDocuments = true
			continue
		}
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	if hasDocuments {
		uids = append(uids, documentsIndexUID)
	}
	return uids
}
