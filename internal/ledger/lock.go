package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// InstanceLock fences the ledger directory to a single engine process. The
// dedup check before a placement is read-modify-append with no transactional
// isolation, so two writers on the same files would double-place.
type InstanceLock struct {
	path string
}

// AcquireLock creates the lock file, taking over a lock whose owner process
// is no longer alive.
func AcquireLock(root string) (*InstanceLock, error) {
	if root == "" {
		return nil, errors.New("state dir required")
	}
	path := filepath.Join(root, ".instance.lock")
	for attempts := 0; attempts < 2; attempts++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			payload := "pid=" + strconv.Itoa(os.Getpid()) + "\nstarted_at=" + time.Now().UTC().Format(time.RFC3339) + "\n"
			if _, werr := f.WriteString(payload); werr != nil {
				_ = f.Close()
				_ = os.Remove(path)
				return nil, werr
			}
			if serr := f.Sync(); serr != nil {
				_ = f.Close()
				_ = os.Remove(path)
				return nil, serr
			}
			_ = f.Close()
			return &InstanceLock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		pid, perr := lockOwnerPID(path)
		if perr != nil {
			return nil, fmt.Errorf("instance lock exists: %s (%v)", path, perr)
		}
		if pid > 0 && processAlive(pid) {
			return nil, fmt.Errorf("instance lock exists: %s (owner pid %d running)", path, pid)
		}
		if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			return nil, rerr
		}
	}
	return nil, fmt.Errorf("instance lock exists: %s", path)
}

func (l *InstanceLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	l.path = ""
	return nil
}

func lockOwnerPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "pid="); ok {
			pid, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return 0, fmt.Errorf("malformed lock pid: %w", err)
			}
			return pid, nil
		}
	}
	return 0, scanner.Err()
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrProcessDone) {
		return false
	}
	// EPERM means the process exists but belongs to another user.
	return errors.Is(err, syscall.EPERM)
}
