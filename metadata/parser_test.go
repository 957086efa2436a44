// metadata/parser_test.go
package metadata_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/chmenegatti/typeprefs/metadata"
	"github.com/chmenegatti/typeprefs/metadata/internal/fixture"
)

// --- Sample structs ---

type CameraSettings struct {
	Resolution  int   `pref:""`
	BitrateKbps int   `pref:"id:7"`
	Framerate   int32 `pref:"id:7;default:42"`
	Exposure    *int  `pref:"ID: 3 ; Default: -10"` // keys are case-insensitive, spaces trimmed
	Scratch     int   `pref:"-"`
	Label       string
	hidden      int `pref:"id:99"` // unexported, skipped
}

type AudioSettings struct {
	Volume int `pref:"id:1;default:80"`
}

type BadTypes struct {
	Name string `pref:"id:1"`
}

type BadValues struct {
	A int `pref:"id:abc"`
	B int `pref:"default:99999999999"`
	C int `pref:"id:1;id:2"`
	D int `pref:"colour:red"`
	E int `pref:"default:1;defaultObject:2"`
}

func TestParse_Defaults(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	meta, err := metadata.Parse(CameraSettings{})
	if err != nil {
		t.Fatalf("Parse(CameraSettings) failed: %v", err)
	}
	if meta.Name() != "CameraSettings" {
		t.Errorf("expected Name 'CameraSettings', got '%s'", meta.Name())
	}
	if meta.Len() != 4 {
		t.Fatalf("expected 4 tagged fields, got %d", meta.Len())
	}

	cases := []struct {
		field string
		want  metadata.PreferenceInt
	}{
		{"Resolution", metadata.PreferenceInt{ID: 0, Default: -1}},
		{"BitrateKbps", metadata.PreferenceInt{ID: 7, Default: -1}},
		{"Framerate", metadata.PreferenceInt{ID: 7, Default: 42}},
		{"Exposure", metadata.PreferenceInt{ID: 3, Default: -10}},
	}
	for _, tc := range cases {
		f, ok := meta.Field(tc.field)
		if !ok {
			t.Errorf("field %s not found", tc.field)
			continue
		}
		if f.Tag != tc.want {
			t.Errorf("%s: expected %+v, got %+v", tc.field, tc.want, f.Tag)
		}
	}

	for _, skipped := range []string{"Scratch", "Label", "hidden"} {
		if _, ok := meta.Field(skipped); ok {
			t.Errorf("field %s should not be tagged", skipped)
		}
	}
}

func TestParse_OrderAndKeys(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	meta, err := metadata.Parse(&CameraSettings{})
	if err != nil {
		t.Fatalf("Parse(&CameraSettings) failed: %v", err)
	}
	fields := meta.Fields()
	wantOrder := []string{"Resolution", "BitrateKbps", "Framerate", "Exposure"}
	for i, name := range wantOrder {
		if fields[i].FieldName != name {
			t.Errorf("position %d: expected %s, got %s", i, name, fields[i].FieldName)
		}
	}
	if fields[1].Key != "metadata_test.camera_settings.bitrate_kbps" {
		t.Errorf("expected key 'metadata_test.camera_settings.bitrate_kbps', got '%s'", fields[1].Key)
	}
	if fields[1].Package != "github.com/chmenegatti/typeprefs/metadata_test" {
		t.Errorf("unexpected package %s", fields[1].Package)
	}
	if fields[1].FieldIndex != 1 {
		t.Errorf("expected FieldIndex 1, got %d", fields[1].FieldIndex)
	}

	// Mutating the returned slice must not leak into the cached metadata.
	fields[0].Tag.ID = 1000
	again, _ := meta.Field("Resolution")
	if again.Tag.ID != 0 {
		t.Errorf("cached metadata was modified through Fields(): id=%d", again.Tag.ID)
	}
}

func TestParse_Isolation(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	camera, err := metadata.Parse(CameraSettings{})
	if err != nil {
		t.Fatalf("Parse(CameraSettings) failed: %v", err)
	}
	audio, err := metadata.Parse(AudioSettings{})
	if err != nil {
		t.Fatalf("Parse(AudioSettings) failed: %v", err)
	}
	if _, ok := camera.Field("Volume"); ok {
		t.Error("AudioSettings.Volume leaked into CameraSettings")
	}
	v, _ := audio.Field("Volume")
	if v.Tag != (metadata.PreferenceInt{ID: 1, Default: 80}) {
		t.Errorf("unexpected AudioSettings.Volume tag %+v", v.Tag)
	}
	r, _ := camera.Field("Resolution")
	if r.Tag != metadata.NewPreferenceInt() {
		t.Errorf("CameraSettings.Resolution changed after parsing another type: %+v", r.Tag)
	}
}

func TestParse_Cache(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	first, err := metadata.Parse(CameraSettings{})
	if err != nil {
		t.Fatalf("first Parse failed: %v", err)
	}
	second, err := metadata.Parse(&CameraSettings{})
	if err != nil {
		t.Fatalf("second Parse failed: %v", err)
	}
	if first != second {
		t.Error("expected the cached *TypeMetadata for value and pointer targets")
	}

	var wg sync.WaitGroup
	results := make([]*metadata.TypeMetadata, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = metadata.Parse(CameraSettings{})
		}(i)
	}
	wg.Wait()
	for i, r := range results {
		if r != first {
			t.Errorf("goroutine %d got a different metadata instance", i)
		}
	}

	metadata.ClearMetadataCache()
	third, err := metadata.Parse(CameraSettings{})
	if err != nil {
		t.Fatalf("Parse after clear failed: %v", err)
	}
	if third == first {
		t.Error("expected a fresh instance after ClearMetadataCache")
	}
}

func TestParse_InvalidInput(t *testing.T) {
	if _, err := metadata.Parse(nil); !errors.Is(err, metadata.ErrInvalidTarget) {
		t.Errorf("Parse(nil): expected ErrInvalidTarget, got %v", err)
	}
	n := 5
	if _, err := metadata.Parse(&n); !errors.Is(err, metadata.ErrInvalidTarget) {
		t.Errorf("Parse(*int): expected ErrInvalidTarget, got %v", err)
	}
	if _, err := metadata.Parse("text"); err == nil || !strings.Contains(err.Error(), "must be a struct") {
		t.Errorf("Parse(string): unexpected error %v", err)
	}
	anonymous := struct {
		Volume int `pref:"id:1"`
	}{}
	if _, err := metadata.Parse(anonymous); !errors.Is(err, metadata.ErrInvalidTarget) {
		t.Errorf("Parse(anonymous struct): expected ErrInvalidTarget, got %v", err)
	}
}

type Settings struct {
	Volume int `pref:"id:1"`
}

type NamedSettings struct {
	Volume int `pref:"id:2"`
}

func (NamedSettings) PreferenceNamespace() string { return "audio" }

type EmptyNamespace struct {
	Volume int `pref:""`
}

func (*EmptyNamespace) PreferenceNamespace() string { return "" }

func TestParse_SameNamedTypes(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	type Settings struct {
		Volume int `pref:"id:9;default:3"`
	}

	localMeta, err := metadata.Parse(Settings{})
	if err != nil {
		t.Fatalf("Parse(local Settings) failed: %v", err)
	}
	pkgLevel, err := metadata.Parse(outerSettings())
	if err != nil {
		t.Fatalf("Parse(package Settings) failed: %v", err)
	}
	other, err := metadata.Parse(fixture.Settings{})
	if err != nil {
		t.Fatalf("Parse(fixture.Settings) failed: %v", err)
	}

	if localMeta == pkgLevel || localMeta.Type() == pkgLevel.Type() {
		t.Fatal("distinct types with the same name must get distinct metadata")
	}
	local, _ := localMeta.Field("Volume")
	global, _ := pkgLevel.Field("Volume")
	foreign, _ := other.Field("Volume")
	if local.Tag != (metadata.PreferenceInt{ID: 9, Default: 3}) || global.Tag != (metadata.PreferenceInt{ID: 1, Default: -1}) {
		t.Errorf("tags leaked between same-named types: local=%+v package=%+v", local.Tag, global.Tag)
	}
	if foreign.Tag != (metadata.PreferenceInt{ID: 1, Default: 80}) {
		t.Errorf("unexpected fixture.Settings tag %+v", foreign.Tag)
	}

	if global.Key != "metadata_test.settings.volume" {
		t.Errorf("unexpected key %s", global.Key)
	}
	if foreign.Key != "fixture.settings.volume" {
		t.Errorf("types from different packages must not share keys, got %s", foreign.Key)
	}
	if other.QualifiedName() != "github.com/chmenegatti/typeprefs/metadata/internal/fixture.Settings" {
		t.Errorf("unexpected qualified name %s", other.QualifiedName())
	}
}

// outerSettings returns the package-level Settings from a scope where it is not shadowed.
func outerSettings() Settings { return Settings{} }

func TestParse_Namespace(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	meta, err := metadata.Parse(&NamedSettings{})
	if err != nil {
		t.Fatalf("Parse(NamedSettings) failed: %v", err)
	}
	if meta.Namespace() != "audio" {
		t.Errorf("expected namespace 'audio', got '%s'", meta.Namespace())
	}
	f, _ := meta.Field("Volume")
	if f.Key != "audio.volume" {
		t.Errorf("expected key 'audio.volume', got '%s'", f.Key)
	}

	if _, err := metadata.Parse(EmptyNamespace{}); !errors.Is(err, metadata.ErrInvalidTarget) {
		t.Errorf("empty namespace: expected ErrInvalidTarget, got %v", err)
	}
}

func TestParse_TagErrors(t *testing.T) {
	metadata.ClearMetadataCache()
	t.Cleanup(metadata.ClearMetadataCache)

	_, err := metadata.Parse(BadTypes{})
	if !errors.Is(err, metadata.ErrInvalidTag) {
		t.Errorf("BadTypes: expected ErrInvalidTag, got %v", err)
	}

	_, err = metadata.Parse(BadValues{})
	if err == nil {
		t.Fatal("BadValues: expected an error")
	}
	if !strings.Contains(err.Error(), "5 error(s)") {
		t.Errorf("expected all five problems to be reported, got: %v", err)
	}
	if !strings.Contains(err.Error(), "key 'default' repeated on BadValues.E") {
		t.Errorf("expected the default/defaultObject alias to count as a repeat, got: %v", err)
	}
	if !errors.Is(err, metadata.ErrDuplicateTag) {
		t.Error("expected ErrDuplicateTag in the joined error")
	}
	if !errors.Is(err, metadata.ErrInvalidTag) {
		t.Error("expected ErrInvalidTag in the joined error")
	}

	// Failed types are not cached: a second call fails the same way.
	if _, err2 := metadata.Parse(BadValues{}); err2 == nil {
		t.Error("second Parse(BadValues) should fail too")
	}
}

func TestNewPreferenceInt(t *testing.T) {
	cases := []struct {
		name string
		opts []metadata.Option
		want metadata.PreferenceInt
	}{
		{"no options", nil, metadata.PreferenceInt{ID: 0, Default: -1}},
		{"id only", []metadata.Option{metadata.WithID(7)}, metadata.PreferenceInt{ID: 7, Default: -1}},
		{"id and default", []metadata.Option{metadata.WithID(7), metadata.WithDefault(42)}, metadata.PreferenceInt{ID: 7, Default: 42}},
		{"default only", []metadata.Option{metadata.WithDefault(0)}, metadata.PreferenceInt{ID: 0, Default: 0}},
		{"nil option", []metadata.Option{nil}, metadata.PreferenceInt{ID: 0, Default: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := metadata.NewPreferenceInt(tc.opts...); got != tc.want {
				t.Errorf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestKeyFor(t *testing.T) {
	if got := metadata.KeyFor("RobotSettings", "CameraID"); got != "robot_settings.camera_id" {
		t.Errorf("unexpected key %s", got)
	}
	ref := metadata.FieldRef{Type: "AudioSettings", Field: "Volume"}
	if ref.Key() != "audio_settings.volume" {
		t.Errorf("unexpected key %s", ref.Key())
	}
}
