package registry

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"weak"

	"go.uber.org/zap"

	"github.com/mabhi256/xmx/internal/jvm"
	"github.com/mabhi256/xmx/internal/pattern"
)

// XmxClassInfo is the read-only identity record of a registered class.
type XmxClassInfo struct {
	ID           int
	Name         string
	AppName      string
	ScopeID      int
	Managed      bool
	MaxInstances int // 0 means unlimited
}

// XmxObjectInfo is the read-only identity record of a tracked instance.
type XmxObjectInfo struct {
	ID        int
	ClassID   int
	ClassName string
	Object    *jvm.Object
	// ProxyTarget is the instance a detected proxy delegates to.
	ProxyTarget *jvm.Object
}

// ClassOptions are the per-class settings resolved from configuration.
type ClassOptions struct {
	Managed      bool
	MaxInstances int
}

type classEntry struct {
	info  XmxClassInfo
	class weak.Pointer[jvm.Class]
	scope *ManagedClassLoaderWeakRef

	mu      sync.Mutex
	objects []int // registration order, oldest first
}

type objectEntry struct {
	id      int
	classID int
	ref     *SmartReference[jvm.Object]
}

// Stats is a point-in-time summary used by the browser and inspect output.
type Stats struct {
	Scopes        int
	Classes       int
	Objects       int
	LiveObjects   int
	StrongObjects int
	HeldScopes    int
}

// Registry assigns stable ids to classes and objects and tracks instances
// through SmartReferences. All methods are safe for concurrent use.
type Registry struct {
	log *zap.Logger

	nextScopeID  atomic.Int64
	nextClassID  atomic.Int64
	nextObjectID atomic.Int64

	scopes      *Store[int64, *ManagedClassLoaderWeakRef] // by loader id
	classes     *Store[int, *classEntry]
	classByPtr  *Store[weak.Pointer[jvm.Class], int]
	objects     *Store[int, *objectEntry]
	objectByPtr *Store[weak.Pointer[jvm.Object], int]
}

func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:         log.Named("registry"),
		scopes:      NewStore[int64, *ManagedClassLoaderWeakRef](),
		classes:     NewStore[int, *classEntry](),
		classByPtr:  NewStore[weak.Pointer[jvm.Class], int](),
		objects:     NewStore[int, *objectEntry](),
		objectByPtr: NewStore[weak.Pointer[jvm.Object], int](),
	}
}

// Scope returns the state for loader, creating it on first use. The state is
// torn down when the loader is disposed.
func (r *Registry) Scope(loader *jvm.Loader) *ManagedClassLoaderWeakRef {
	scope, loaded := r.scopes.LoadOrStore(loader.ID(), func() *ManagedClassLoaderWeakRef {
		s := newScope(int(r.nextScopeID.Add(1)), loader)
		s.onCount = r.logTransition
		return s
	})
	if !loaded {
		r.log.Debug("scope created", zap.Int("scope", scope.ID()), zap.Stringer("loader", loader))
		loader.OnDispose(r.disposeScope)
	}
	return scope
}

func (r *Registry) logTransition(scope *ManagedClassLoaderWeakRef, count int) {
	r.log.Debug("managed instances count changed",
		zap.Int("scope", scope.ID()),
		zap.String("app", scope.Name()),
		zap.Int("count", count))
}

func (r *Registry) disposeScope(loader *jvm.Loader) {
	scope, ok := r.scopes.Get(loader.ID())
	if !ok {
		return
	}
	r.scopes.Delete(loader.ID())

	classIDs := make(map[int]bool)
	r.classes.DeleteFunc(func(id int, e *classEntry) bool {
		if e.scope == scope {
			classIDs[id] = true
			return true
		}
		return false
	})
	r.classByPtr.DeleteFunc(func(_ weak.Pointer[jvm.Class], id int) bool {
		return classIDs[id]
	})

	objectIDs := make(map[int]bool)
	r.objects.DeleteFunc(func(id int, e *objectEntry) bool {
		if classIDs[e.classID] {
			objectIDs[id] = true
			return true
		}
		return false
	})
	r.objectByPtr.DeleteFunc(func(_ weak.Pointer[jvm.Object], id int) bool {
		return objectIDs[id]
	})

	scope.dispose()
	r.log.Info("scope disposed",
		zap.Int("scope", scope.ID()),
		zap.String("app", scope.Name()),
		zap.Int("classes", len(classIDs)),
		zap.Int("objects", len(objectIDs)))
}

// RegisterClass returns the class record for cls, assigning an id the first
// time the class is seen.
func (r *Registry) RegisterClass(cls *jvm.Class, opts ClassOptions) XmxClassInfo {
	scope := r.Scope(cls.Loader())

	id, loaded := r.classByPtr.LoadOrStore(weak.Make(cls), func() int {
		id := int(r.nextClassID.Add(1))
		r.classes.Add(id, &classEntry{
			info: XmxClassInfo{
				ID:           id,
				Name:         cls.Name,
				AppName:      scope.Name(),
				ScopeID:      scope.ID(),
				Managed:      opts.Managed,
				MaxInstances: opts.MaxInstances,
			},
			class: weak.Make(cls),
			scope: scope,
		})
		return id
	})
	entry, _ := r.classes.Get(id)
	if !loaded {
		r.log.Debug("class registered", zap.Int("id", id), zap.String("class", cls.Name), zap.String("app", scope.Name()))
	}
	return entry.info
}

// ClassID returns the id assigned to cls, if any.
func (r *Registry) ClassID(cls *jvm.Class) (int, bool) {
	return r.classByPtr.Get(weak.Make(cls))
}

// RegisterObject starts tracking obj under classID. Registering the same
// object twice returns the existing id. When the class is over its cap the
// oldest tracked instance is evicted.
func (r *Registry) RegisterObject(classID int, obj *jvm.Object) (int, error) {
	entry, ok := r.classes.Get(classID)
	if !ok {
		return 0, fmt.Errorf("register object: unknown class id %d", classID)
	}

	id, loaded := r.objectByPtr.LoadOrStore(weak.Make(obj), func() int {
		id := int(r.nextObjectID.Add(1))
		r.objects.Add(id, &objectEntry{
			id:      id,
			classID: classID,
			ref:     CreateSmartReference(entry.scope, obj),
		})
		return id
	})
	if loaded {
		return id, nil
	}

	entry.mu.Lock()
	entry.objects = append(entry.objects, id)
	var evicted []int
	if limit := entry.info.MaxInstances; limit > 0 && len(entry.objects) > limit {
		evicted = slices.Clone(entry.objects[:len(entry.objects)-limit])
		entry.objects = slices.Delete(entry.objects, 0, len(evicted))
	}
	entry.mu.Unlock()

	for _, old := range evicted {
		r.removeObject(entry, old)
	}
	if len(evicted) > 0 {
		r.log.Debug("instance cap reached, evicted oldest",
			zap.String("class", entry.info.Name),
			zap.Int("max", entry.info.MaxInstances),
			zap.Ints("evicted", evicted))
	}
	return id, nil
}

func (r *Registry) removeObject(entry *classEntry, id int) {
	oe, ok := r.objects.Get(id)
	if !ok {
		return
	}
	r.forgetObject(id)
	RemoveSmartReference(entry.scope, oe.ref)
}

func (r *Registry) forgetObject(id int) {
	r.objects.Delete(id)
	r.objectByPtr.DeleteFunc(func(_ weak.Pointer[jvm.Object], v int) bool {
		return v == id
	})
}

// GetObject looks up a tracked instance. A collected or unknown id is
// reported as not found.
func (r *Registry) GetObject(id int) (XmxObjectInfo, bool) {
	oe, ok := r.objects.Get(id)
	if !ok {
		return XmxObjectInfo{}, false
	}
	obj := oe.ref.Get()
	if obj == nil {
		return XmxObjectInfo{}, false
	}
	return XmxObjectInfo{
		ID:          oe.id,
		ClassID:     oe.classID,
		ClassName:   obj.Class().Name,
		Object:      obj,
		ProxyTarget: proxyTarget(obj),
	}, true
}

// GetClass looks up a class record. A class whose scope is gone is not found.
func (r *Registry) GetClass(id int) (XmxClassInfo, bool) {
	entry, ok := r.classes.Get(id)
	if !ok || entry.class.Value() == nil {
		return XmxClassInfo{}, false
	}
	return entry.info, true
}

// ObjectsOf returns the live tracked instances of a class ordered by id.
func (r *Registry) ObjectsOf(classID int) []XmxObjectInfo {
	entry, ok := r.classes.Get(classID)
	if !ok {
		return nil
	}
	entry.mu.Lock()
	ids := slices.Clone(entry.objects)
	entry.mu.Unlock()

	var result []XmxObjectInfo
	for _, id := range ids {
		if info, ok := r.GetObject(id); ok {
			result = append(result, info)
		}
	}
	return result
}

// Classes returns every live class record ordered by id.
func (r *Registry) Classes() []XmxClassInfo {
	var result []XmxClassInfo
	for _, entry := range r.classes.GetAll() {
		if entry.class.Value() != nil {
			result = append(result, entry.info)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// Applications returns the sorted names of the live scopes.
func (r *Registry) Applications() []string {
	seen := make(map[string]bool)
	for _, scope := range r.scopes.GetAll() {
		if scope.Loader() != nil {
			seen[scope.Name()] = true
		}
	}
	apps := make([]string, 0, len(seen))
	for app := range seen {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// FindClasses returns the classes whose application and class name match the
// given name patterns. An empty pattern matches everything.
func (r *Registry) FindClasses(appPattern, classPattern string) ([]XmxClassInfo, error) {
	appMatch, err := compileOptional(appPattern)
	if err != nil {
		return nil, err
	}
	classMatch, err := compileOptional(classPattern)
	if err != nil {
		return nil, err
	}

	var result []XmxClassInfo
	for _, info := range r.Classes() {
		if appMatch != nil && !appMatch.Match(info.AppName) {
			continue
		}
		if classMatch != nil && !classMatch.MatchTypeName(info.Name) {
			continue
		}
		result = append(result, info)
	}
	return result, nil
}

func compileOptional(s string) (*pattern.NamePattern, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return pattern.CompileName(s)
}

// Hold pins the instances of the class's scope until the returned release
// function is called. Release is idempotent.
func (r *Registry) Hold(classID int) (release func(), err error) {
	entry, ok := r.classes.Get(classID)
	if !ok {
		return nil, fmt.Errorf("hold: unknown class id %d", classID)
	}
	entry.scope.IncrementManagedInstancesCount()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.scope.DecrementManagedInstancesCount()
		})
	}, nil
}

// Purge drops records whose referents have been collected and reports how
// many object records were removed.
func (r *Registry) Purge() int {
	removed := 0
	for id, oe := range r.objects.GetAll() {
		if oe.ref.Get() != nil {
			continue
		}
		entry, ok := r.classes.Get(oe.classID)
		if !ok {
			r.forgetObject(id)
			removed++
			continue
		}
		entry.mu.Lock()
		entry.objects = slices.DeleteFunc(entry.objects, func(v int) bool { return v == id })
		entry.mu.Unlock()
		r.removeObject(entry, id)
		removed++
	}

	r.classes.DeleteFunc(func(_ int, e *classEntry) bool {
		return e.class.Value() == nil
	})
	r.classByPtr.DeleteFunc(func(p weak.Pointer[jvm.Class], _ int) bool {
		return p.Value() == nil
	})

	if removed > 0 {
		r.log.Debug("purged collected instances", zap.Int("count", removed))
	}
	return removed
}

func (r *Registry) Statistics() Stats {
	stats := Stats{
		Classes: r.classes.Count(),
		Objects: r.objects.Count(),
	}
	for _, scope := range r.scopes.GetAll() {
		stats.Scopes++
		if scope.ManagedInstancesCount() > 0 {
			stats.HeldScopes++
		}
	}
	for _, oe := range r.objects.GetAll() {
		if oe.ref.Get() != nil {
			stats.LiveObjects++
		}
		if oe.ref.IsStrong() {
			stats.StrongObjects++
		}
	}
	return stats
}

// proxyTarget unwraps generated proxy classes, which by convention carry a
// $$ marker in their name and keep the delegate in a "target" field.
func proxyTarget(obj *jvm.Object) *jvm.Object {
	name := obj.Class().Name
	if !strings.Contains(name, "$$Proxy") && !strings.Contains(name, "$$EnhancerBy") {
		return nil
	}
	if v, ok := obj.Get("target"); ok {
		if target, ok := v.(*jvm.Object); ok {
			return target
		}
	}
	return nil
}
