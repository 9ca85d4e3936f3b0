package auxdata

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	snowCondPrefix = "ESACCI-LC-L4-Snow-Cond-AggOcc-500m-P13Y7D-2000-2012-"
	snowCondSuffix = "-v2.0.tif"
)

// SelectSnowCondition picks the weekly snow-condition product closest to the
// acquisition day of year. Products are dated in 2000, so day numbers after
// February are one ahead of those of non-leap acquisitions.
func SelectSnowCondition(dir string, acquired time.Time) (string, error) {
	files, err := filepath.Glob(filepath.Join(dir, snowCondPrefix+"2000*"+snowCondSuffix))
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no snow condition products in %s", dir)
	}
	sort.Strings(files)

	doy := acquired.YearDay()
	if doy > 363 || (doy > 362 && !isLeap(acquired.Year())) {
		return files[len(files)-1], nil
	}

	selected := ""
	if doy == 61 && len(files) > 8 {
		selected = files[8]
	}
	for _, f := range files {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(f), snowCondPrefix), snowCondSuffix)
		day, err := time.Parse("20060102", stamp)
		if err != nil {
			continue
		}
		if abs(doy-day.YearDay()) < 4 {
			return f, nil
		}
	}
	if selected == "" {
		return "", fmt.Errorf("no snow condition product within 3 days of day %d in %s", doy, dir)
	}
	return selected, nil
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
