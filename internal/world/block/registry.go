package block

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Material представляет идентификатор типа блока или предмета
type Material uint16

// Info описывает свойства материала
type Info struct {
	Name      string // Уникальное имя в snake_case ("oak_log")
	Placeable bool   // Может ли материал существовать в мире как блок
	Solid     bool   // Полный непрозрачный блок
}

var (
	registryMu sync.RWMutex
	registry   = make(map[Material]Info)
	byName     = make(map[string]Material)
)

// Register добавляет материал в регистр. Повторная регистрация имени или ID — ошибка.
func Register(m Material, info Info) error {
	info.Name = strings.ToLower(strings.TrimSpace(info.Name))
	if info.Name == "" {
		return fmt.Errorf("материал %d: пустое имя", m)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[m]; ok {
		return fmt.Errorf("материал %d уже зарегистрирован как %q", m, existing.Name)
	}
	if existing, ok := byName[info.Name]; ok {
		return fmt.Errorf("имя %q уже занято материалом %d", info.Name, existing)
	}
	registry[m] = info
	byName[info.Name] = m
	return nil
}

// MustRegister как Register, но паникует при ошибке. Используется в init().
func MustRegister(m Material, info Info) {
	if err := Register(m, info); err != nil {
		panic(err)
	}
}

// Get возвращает свойства материала
func Get(m Material) (Info, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[m]
	return info, ok
}

// ByName ищет материал по имени без учёта регистра
func ByName(name string) (Material, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	m, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// Names возвращает отсортированный список всех зарегистрированных имён
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String возвращает имя материала или его числовой ID, если материал не зарегистрирован
func (m Material) String() string {
	if info, ok := Get(m); ok {
		return info.Name
	}
	return fmt.Sprintf("material(%d)", m)
}

// IsAir проверяет, является ли материал воздухом
func (m Material) IsAir() bool { return m == Air }

// Placeable проверяет, может ли материал быть блоком в мире
func (m Material) Placeable() bool {
	info, ok := Get(m)
	return ok && info.Placeable
}

// MarshalText кодирует материал именем (YAML/JSON)
func (m Material) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText декодирует материал из имени
func (m *Material) UnmarshalText(text []byte) error {
	mat, ok := ByName(string(text))
	if !ok {
		return fmt.Errorf("неизвестный материал %q", string(text))
	}
	*m = mat
	return nil
}
