package stress

import (
	"strconv"
	"time"

	"github.com/mindfs/mindfs/fserr"
)

// ParseArgs builds a Config from shell-style arguments: --files N,
// --threads T, --duration S, --write-size B, --monitor S,
// --workspace /path, --buckets K, --cleanup. Durations are seconds.
func ParseArgs(args []string) (Config, error) {
	cfg := DefaultConfig()
	i := 0
	next := func(flag string) (string, error) {
		i++
		if i >= len(args) {
			return "", fserr.Newf(fserr.InvalidArgument, "missing value for %s", flag)
		}
		return args[i], nil
	}
	intValue := func(flag string) (int, error) {
		v, err := next(flag)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, fserr.Newf(fserr.InvalidArgument, "invalid value for %s: %s", flag, v)
		}
		return n, nil
	}
	for ; i < len(args); i++ {
		switch args[i] {
		case "--files":
			n, err := intValue("--files")
			if err != nil {
				return cfg, err
			}
			cfg.FileCount = n
		case "--threads":
			n, err := intValue("--threads")
			if err != nil {
				return cfg, err
			}
			cfg.ThreadCount = n
		case "--duration":
			n, err := intValue("--duration")
			if err != nil {
				return cfg, err
			}
			cfg.Duration = time.Duration(n) * time.Second
		case "--write-size":
			n, err := intValue("--write-size")
			if err != nil {
				return cfg, err
			}
			cfg.WriteSize = n
		case "--monitor":
			n, err := intValue("--monitor")
			if err != nil {
				return cfg, err
			}
			cfg.MonitorInterval = time.Duration(n) * time.Second
		case "--workspace":
			v, err := next("--workspace")
			if err != nil {
				return cfg, err
			}
			cfg.WorkspacePath = v
		case "--buckets":
			n, err := intValue("--buckets")
			if err != nil {
				return cfg, err
			}
			cfg.BucketCount = n
		case "--cleanup":
			cfg.CleanupAfter = true
		default:
			return cfg, fserr.Newf(fserr.InvalidArgument, "unknown stress option: %s", args[i])
		}
	}
	return cfg, nil
}
