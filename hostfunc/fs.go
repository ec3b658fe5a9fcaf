package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MountMode defines the permission level for a mount point.
type MountMode int

const (
	// MountReadOnly allows only read operations.
	MountReadOnly MountMode = iota
	// MountReadWrite allows read and write operations to existing files/dirs.
	MountReadWrite
	// MountReadWriteCreate allows read, write, and create operations.
	MountReadWriteCreate
)

// ParseMountMode parses "ro", "rw" or "rwc".
func ParseMountMode(s string) (MountMode, error) {
	switch s {
	case "ro":
		return MountReadOnly, nil
	case "rw":
		return MountReadWrite, nil
	case "rwc":
		return MountReadWriteCreate, nil
	default:
		return 0, fmt.Errorf("invalid mount mode %q (expected ro, rw, or rwc)", s)
	}
}

func (m MountMode) String() string {
	switch m {
	case MountReadOnly:
		return "ro"
	case MountReadWrite:
		return "rw"
	case MountReadWriteCreate:
		return "rwc"
	default:
		return fmt.Sprintf("MountMode(%d)", int(m))
	}
}

// Mount represents a virtual path mapped to a host path with specific permissions.
type Mount struct {
	VirtualPath string    // Path as seen by script code (e.g., "/data")
	HostPath    string    // Actual path on host filesystem
	Mode        MountMode // Permission level
}

// ParseMount parses a virtual:host:mode spec.
func ParseMount(spec string) (Mount, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return Mount{}, fmt.Errorf("invalid mount spec %q (expected virtual:host:mode)", spec)
	}
	mode, err := ParseMountMode(parts[2])
	if err != nil {
		return Mount{}, err
	}
	return Mount{VirtualPath: parts[0], HostPath: parts[1], Mode: mode}, nil
}

const (
	DefaultFSMaxFileSize   = 10 << 20
	DefaultFSMaxWriteSize  = 10 << 20
	DefaultFSMaxPathLength = 4096
)

// FSConfig bounds filesystem access.
type FSConfig struct {
	MaxFileSize   int64
	MaxWriteSize  int64
	MaxPathLength int
}

// FS provides filesystem operations with explicit mount points.
type FS struct {
	cfg    FSConfig
	mounts []Mount
	mu     sync.RWMutex
}

// NewFS creates a filesystem handler with default limits.
func NewFS(mounts ...Mount) *FS {
	return NewFSWithConfig(FSConfig{}, mounts...)
}

// NewFSWithConfig creates a filesystem handler. Zero limits take defaults.
func NewFSWithConfig(cfg FSConfig, mounts ...Mount) *FS {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultFSMaxFileSize
	}
	if cfg.MaxWriteSize <= 0 {
		cfg.MaxWriteSize = DefaultFSMaxWriteSize
	}
	if cfg.MaxPathLength <= 0 {
		cfg.MaxPathLength = DefaultFSMaxPathLength
	}

	normalized := make([]Mount, 0, len(mounts))
	for _, m := range mounts {
		// Virtual paths start with / and carry no trailing slash.
		vp := "/" + strings.Trim(m.VirtualPath, "/")
		hp, err := filepath.Abs(m.HostPath)
		if err != nil {
			continue
		}
		normalized = append(normalized, Mount{
			VirtualPath: vp,
			HostPath:    hp,
			Mode:        m.Mode,
		})
	}
	return &FS{cfg: cfg, mounts: normalized}
}

// Mounts returns the normalized mounts.
func (f *FS) Mounts() []Mount {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Mount(nil), f.mounts...)
}

// Library exposes the handler as the "fs" library.
func (f *FS) Library() Library {
	return Library{
		Name: LibFS,
		Funcs: map[string]Func{
			"read":   f.Read,
			"write":  f.Write,
			"list":   f.List,
			"exists": f.Exists,
			"mkdir":  f.Mkdir,
			"remove": f.Remove,
			"stat":   f.Stat,
		},
	}
}

// resolve maps a virtual path to a host path, checking permissions.
func (f *FS) resolve(virtualPath string, needWrite bool) (string, error) {
	if len(virtualPath) > f.cfg.MaxPathLength {
		return "", errors.New("path exceeds max length")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	vp := filepath.Clean("/" + strings.TrimPrefix(virtualPath, "/"))

	for _, m := range f.mounts {
		if vp == m.VirtualPath || strings.HasPrefix(vp, m.VirtualPath+"/") {
			if needWrite && m.Mode == MountReadOnly {
				return "", errors.New("permission denied: read-only mount")
			}

			relPath := strings.TrimPrefix(vp, m.VirtualPath)
			if relPath == "" {
				relPath = "/"
			}

			absHostPath, err := filepath.Abs(filepath.Join(m.HostPath, relPath))
			if err != nil {
				return "", errors.New("invalid path")
			}

			// The resolved path must stay under the mount's host path.
			if absHostPath != m.HostPath && !strings.HasPrefix(absHostPath, m.HostPath+string(filepath.Separator)) {
				return "", errors.New("permission denied: path escape attempt")
			}

			return absHostPath, nil
		}
	}

	return "", errors.New("permission denied: path not in any mount")
}

// Read returns the contents of a file.
func (f *FS) Read(ctx context.Context, args map[string]any) (any, error) {
	path, ok := stringArg(args, "path", 0)
	if !ok {
		return nil, errors.New("path required")
	}

	hostPath, err := f.resolve(path, false)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("file not found: " + path)
		}
		return nil, errors.New("read error: " + err.Error())
	}
	if info.Size() > f.cfg.MaxFileSize {
		return nil, fmt.Errorf("file exceeds max size %d", f.cfg.MaxFileSize)
	}

	data, err := os.ReadFile(hostPath)
	if err != nil {
		return nil, errors.New("read error: " + err.Error())
	}

	return string(data), nil
}

// Write writes content to a file.
func (f *FS) Write(ctx context.Context, args map[string]any) (any, error) {
	path, ok := stringArg(args, "path", 0)
	if !ok {
		return nil, errors.New("path required")
	}
	content, ok := stringArg(args, "content", 1)
	if !ok {
		return nil, errors.New("content required")
	}
	if int64(len(content)) > f.cfg.MaxWriteSize {
		return nil, fmt.Errorf("content exceeds max write size %d", f.cfg.MaxWriteSize)
	}

	hostPath, err := f.resolve(path, true)
	if err != nil {
		return nil, err
	}

	// MountReadWrite may only overwrite existing files.
	if _, statErr := os.Stat(hostPath); os.IsNotExist(statErr) {
		mount := f.findMount(path)
		if mount == nil || mount.Mode != MountReadWriteCreate {
			return nil, errors.New("permission denied: cannot create new files")
		}
	}

	if err := os.WriteFile(hostPath, []byte(content), 0644); err != nil {
		return nil, errors.New("write error: " + err.Error())
	}

	return "ok", nil
}

// List returns the contents of a directory.
func (f *FS) List(ctx context.Context, args map[string]any) (any, error) {
	path, ok := stringArg(args, "path", 0)
	if !ok {
		return nil, errors.New("path required")
	}

	hostPath, err := f.resolve(path, false)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("directory not found: " + path)
		}
		return nil, errors.New("list error: " + err.Error())
	}

	result := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		info, _ := entry.Info()
		item := map[string]any{
			"name":   entry.Name(),
			"is_dir": entry.IsDir(),
		}
		if info != nil {
			item["size"] = info.Size()
		}
		result = append(result, item)
	}

	return result, nil
}

// Exists checks if a path exists. Paths outside every mount do not exist.
func (f *FS) Exists(ctx context.Context, args map[string]any) (any, error) {
	path, ok := stringArg(args, "path", 0)
	if !ok {
		return nil, errors.New("path required")
	}

	hostPath, err := f.resolve(path, false)
	if err != nil {
		return false, nil
	}

	_, err = os.Stat(hostPath)
	return err == nil, nil
}

// Mkdir creates a directory.
func (f *FS) Mkdir(ctx context.Context, args map[string]any) (any, error) {
	path, ok := stringArg(args, "path", 0)
	if !ok {
		return nil, errors.New("path required")
	}

	hostPath, err := f.resolve(path, true)
	if err != nil {
		return nil, err
	}

	mount := f.findMount(path)
	if mount == nil || mount.Mode != MountReadWriteCreate {
		return nil, errors.New("permission denied: cannot create directories")
	}

	if err := os.MkdirAll(hostPath, 0755); err != nil {
		return nil, errors.New("mkdir error: " + err.Error())
	}

	return "ok", nil
}

// Remove deletes a file or empty directory.
func (f *FS) Remove(ctx context.Context, args map[string]any) (any, error) {
	path, ok := stringArg(args, "path", 0)
	if !ok {
		return nil, errors.New("path required")
	}

	hostPath, err := f.resolve(path, true)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(hostPath); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("file not found: " + path)
		}
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) && strings.Contains(pathErr.Error(), "directory not empty") {
			return nil, errors.New("directory not empty: " + path)
		}
		return nil, errors.New("remove error: " + err.Error())
	}

	return "ok", nil
}

// Stat returns information about a file or directory.
func (f *FS) Stat(ctx context.Context, args map[string]any) (any, error) {
	path, ok := stringArg(args, "path", 0)
	if !ok {
		return nil, errors.New("path required")
	}

	hostPath, err := f.resolve(path, false)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("file not found: " + path)
		}
		return nil, errors.New("stat error: " + err.Error())
	}

	return map[string]any{
		"name":     info.Name(),
		"size":     info.Size(),
		"is_dir":   info.IsDir(),
		"mod_time": info.ModTime().Unix(),
	}, nil
}

// findMount finds the mount for a given virtual path.
func (f *FS) findMount(virtualPath string) *Mount {
	f.mu.RLock()
	defer f.mu.RUnlock()

	vp := filepath.Clean("/" + strings.TrimPrefix(virtualPath, "/"))

	for i := range f.mounts {
		m := &f.mounts[i]
		if vp == m.VirtualPath || strings.HasPrefix(vp, m.VirtualPath+"/") {
			return m
		}
	}
	return nil
}
