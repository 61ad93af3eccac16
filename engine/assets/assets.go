package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/anima-hal/engine/assets/loaders"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

var errClosed = errors.New("asset watcher already closed")

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

// AssetManager indexes the files under an asset directory and keeps the
// index current while they change. Writes to a known asset fire
// EVENT_CODE_ASSET_CHANGED with the path.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	watching bool
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[metadata.ResourceType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	// Register loaders
	am.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(metadata.ResourceTypeImage, &loaders.TextureLoader{})
	am.registerLoader(metadata.ResourceTypeBitmapFont, &loaders.BitmapFontLoader{})
	am.registerLoader(metadata.ResourceTypeBinary, &loaders.BinaryLoader{})
	return am, nil
}

func (am *AssetManager) Initialize(assetsDir string) error {
	am.root = filepath.Clean(assetsDir)
	if err := am.addRecursive(am.root); err != nil {
		return err
	}
	am.watching = true
	go am.start()
	core.LogInfo("watching %d assets under %s", am.Count(), am.root)
	return nil
}

func (am *AssetManager) Shutdown() {
	if am.isClosed {
		return
	}
	am.isClosed = true
	if !am.watching {
		am.fsnotify.Close()
		return
	}
	close(am.done)
	<-am.stopped
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errClosed
	}
	return am.watchRecursive(name, false)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Count is the number of indexed assets.
func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Path resolves name relative to the asset directory.
func (am *AssetManager) Path(name string) string {
	if filepath.IsAbs(name) || am.root == "" {
		return filepath.Clean(name)
	}
	return filepath.Join(am.root, name)
}

// LoadAsset loads name, relative to the asset directory, with the loader of
// its type.
func (am *AssetManager) LoadAsset(name string, params interface{}) (*metadata.Resource, error) {
	path := am.Path(name)

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if !exists {
		am.mutex.Unlock()
		return nil, fmt.Errorf("asset not found: %s", path)
	}
	// Update the loaded time
	asset.LastLoaded = time.Now()
	am.assets[path] = asset
	am.mutex.Unlock()

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}
	return loader.Load(path, params)
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	if asset == nil {
		return nil
	}
	loader, ok := am.loaders[determineAssetType(asset.FullPath)]
	if !ok {
		return nil
	}
	return loader.Unload(asset)
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case e, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(e.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	path := filepath.Clean(e.Name)
	s, err := os.Stat(path)
	if err == nil && s != nil && s.IsDir() {
		if e.Op&fsnotify.Create != 0 {
			if err := am.watchRecursive(path, false); err != nil {
				core.LogWarn("unable to watch %s: %s", path, err)
			}
		}
		return
	}
	// Handle create or modify events
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		if am.handleFileEvent(path) {
			context := core.EventContext{}
			context.Data.C[0] = path
			core.EventFire(core.EVENT_CODE_ASSET_CHANGED, am, context)
		}
	}
	// Can't stat a deleted path, so try to drop it from both the index and
	// the watch list.
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		am.removeAsset(path)
		_ = am.fsnotify.Remove(path)
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(filepath.Clean(walkPath))
		return nil
	})
}

// handleFileEvent indexes a created or modified file and reports whether it
// is an asset.
func (am *AssetManager) handleFileEvent(path string) bool {
	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	info := am.assets[path]
	info.Path = path
	info.Type = assetType
	am.assets[path] = info
	return true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
}

func determineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return metadata.ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		return metadata.ResourceTypeImage
	case ".fnt":
		return metadata.ResourceTypeBitmapFont
	case ".bin":
		return metadata.ResourceTypeBinary
	default:
		return metadata.ResourceTypeNone
	}
}
