package q2k

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
)

// RegistrationFile is the sidecar the engine reads to locate its input and
// output.
const RegistrationFile = "message.DAT"

// Paths locates the input document and the expected report of a run.
type Paths struct {
	Document string
	Report   string
}

// PathsFor returns the absolute document and report paths for name in dir.
func PathsFor(dir, name string) (Paths, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	return Paths{
		Document: filepath.Join(abs, name+".q2k"),
		Report:   filepath.Join(abs, name+".out"),
	}, nil
}

// WriteRegistration writes the two-line registration file into dir and
// returns the paths it names.
func WriteRegistration(dir, name string) (Paths, error) {
	p, err := PathsFor(dir, name)
	if err != nil {
		return Paths{}, err
	}
	body := fmt.Sprintf("%s\n%s\n", quote(p.Document), quote(p.Report))
	if err := os.WriteFile(filepath.Join(filepath.Dir(p.Document), RegistrationFile), []byte(body), 0o644); err != nil {
		return Paths{}, fmt.Errorf("failed to write registration file: %w", err)
	}
	return p, nil
}

// WriteFile serializes doc to path.
func WriteFile(path string, doc *document.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
