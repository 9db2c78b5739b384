package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-adexplorer/internal/interfaces"
	"github.com/deploymenttheory/go-adexplorer/internal/types"
)

// ExportService streams decoded object records to flat files. Decoding runs
// ahead of I/O: one producer pass over the objects in file order feeds a
// bounded queue drained by a single writer goroutine, keeping file writes
// sequential.
type ExportService struct {
	config *Config
	log    *logrus.Logger
}

func NewExportService(config *Config, log *logrus.Logger) *ExportService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ExportService{config: config, log: log}
}

// snapshotSource is what the exporters read from a snapshot.
type snapshotSource interface {
	interfaces.ObjectReader
	Header() *types.SnapshotHeader
}

// ExportObjects writes every object as one JSON document per line to
// <server>_<filetimeUnix>_objects.ndjson in the output directory. Binary
// values are base64 encoded; single-valued attributes are unwrapped.
func (es *ExportService) ExportObjects(snap snapshotSource) (string, error) {
	header := snap.Header()
	name := fmt.Sprintf("%s_%d_objects.ndjson", header.Server, header.FiletimeUnix)
	path := filepath.Join(es.config.OutputDir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", &types.IOError{Op: "create", Path: path, Err: err}
	}

	queue := make(chan map[string]interface{}, es.queueDepth())
	writerErr := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		writerErr <- writeNDJSON(out, queue)
	}()

	produceErr := func() error {
		defer close(queue)
		for idx := 0; idx < snap.ObjectCount(); idx++ {
			record, err := snap.ObjectAt(idx)
			if err != nil {
				return err
			}
			attrs, err := record.Attributes()
			if err != nil {
				return err
			}
			queue <- flattenSingles(attrs)
		}
		return nil
	}()

	wg.Wait()
	werr := <-writerErr

	if produceErr != nil {
		os.Remove(path)
		return "", produceErr
	}
	if werr != nil {
		os.Remove(path)
		return "", &types.IOError{Op: "write", Path: path, Err: werr}
	}

	es.log.WithFields(logrus.Fields{
		"path":    path,
		"objects": snap.ObjectCount(),
	}).Info("objects exported")
	return path, nil
}

func writeNDJSON(out *os.File, queue <-chan map[string]interface{}) error {
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for attrs := range queue {
		if err := enc.Encode(attrs); err != nil {
			// Drain so the producer never blocks on a dead writer.
			for range queue {
			}
			out.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// flattenSingles unwraps one-element slices so single-valued attributes
// serialize as scalars, the shape consumers of the original tool expect.
func flattenSingles(attrs map[string]interface{}) map[string]interface{} {
	for name, value := range attrs {
		switch v := value.(type) {
		case []string:
			if len(v) == 1 {
				attrs[name] = v[0]
			}
		case []int64:
			if len(v) == 1 {
				attrs[name] = v[0]
			}
		case []bool:
			if len(v) == 1 {
				attrs[name] = v[0]
			}
		case [][]byte:
			if len(v) == 1 {
				attrs[name] = v[0]
			}
		}
	}
	return attrs
}

// ExportAttributes dumps the chosen attributes of every object as
// "||"-delimited text, one line per object, with a header line naming the
// columns. Missing values render empty.
func (es *ExportService) ExportAttributes(snap snapshotSource, attributes []string) (string, error) {
	if len(attributes) == 0 {
		return "", fmt.Errorf("no attributes requested")
	}

	header := snap.Header()
	name := fmt.Sprintf("%s_%d_attributes.txt", header.Server, header.FiletimeUnix)
	path := filepath.Join(es.config.OutputDir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", &types.IOError{Op: "create", Path: path, Err: err}
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	fmt.Fprintln(w, strings.Join(attributes, "||"))

	for idx := 0; idx < snap.ObjectCount(); idx++ {
		record, err := snap.ObjectAt(idx)
		if err != nil {
			os.Remove(path)
			return "", err
		}

		fields := make([]string, 0, len(attributes))
		for _, attr := range attributes {
			value, present, err := record.Attribute(attr)
			if err != nil {
				os.Remove(path)
				return "", err
			}
			if !present {
				fields = append(fields, "")
				continue
			}
			fields = append(fields, renderValue(value))
		}
		fmt.Fprintln(w, strings.Join(fields, "||"))
	}

	if err := w.Flush(); err != nil {
		os.Remove(path)
		return "", &types.IOError{Op: "write", Path: path, Err: err}
	}

	es.log.WithField("path", path).Info("attributes exported")
	return path, nil
}

func renderValue(value interface{}) string {
	switch v := value.(type) {
	case []string:
		return strings.Join(v, ";")
	case []int64:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return strings.Join(parts, ";")
	case []bool:
		parts := make([]string, len(v))
		for i, b := range v {
			parts[i] = fmt.Sprintf("%t", b)
		}
		return strings.Join(parts, ";")
	case [][]byte:
		parts := make([]string, len(v))
		for i, b := range v {
			parts[i] = fmt.Sprintf("%x", b)
		}
		return strings.Join(parts, ";")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (es *ExportService) queueDepth() int {
	if es.config != nil && es.config.QueueDepth > 0 {
		return es.config.QueueDepth
	}
	return 256
}
