package bundleadjust

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	write := func(name, contents string) string {
		path := filepath.Join(dir, name)
		test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
		return path
	}

	cfg, err := LoadConfig(write("default.json", `{}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Config{Iterations: 50, UsableThreshold: 3, OdometryInformation: 8e7})

	cfg, err = LoadConfig(write("custom.json", `{"iterations": 10, "writeback_poses": true, "usable_threshold": 4}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Iterations, test.ShouldEqual, 10)
	test.That(t, cfg.UsableThreshold, test.ShouldEqual, 4)
	test.That(t, cfg.WritebackPoses, test.ShouldBeTrue)
	test.That(t, cfg.OdometryInformation, test.ShouldEqual, DefaultOdometryInformation)

	// every problem is reported
	_, err = LoadConfig(write("bad.json", `{"iterations": -1, "usable_threshold": 0}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "iterations")
	test.That(t, err.Error(), test.ShouldContainSubstring, "usable_threshold")
}

func TestStatsSummary(t *testing.T) {
	s := Stats{Landmarks: []int{4, 5, 9}, UsableLandmarks: []int{1, 3, 8}, TotalUsableLandmarks: 6}
	summary, err := s.Summarize()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.MeanUsable, test.ShouldEqual, 4)
	test.That(t, summary.MedianUsable, test.ShouldEqual, 3)
	test.That(t, summary.MinUsable, test.ShouldEqual, 1)

	_, err = Stats{}.Summarize()
	test.That(t, err, test.ShouldNotBeNil)
}
