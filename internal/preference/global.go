package preference

import "sync/atomic"

var global atomic.Pointer[API]

// Init устанавливает глобальное хранилище настроек.
func Init(api API) {
	if api == nil {
		global.Store(nil)
		return
	}
	global.Store(&api)
}

// Get возвращает глобальное хранилище. До Init возвращается хранилище,
// в котором рубка включена у всех игроков.
func Get() API {
	if p := global.Load(); p != nil {
		return *p
	}
	fallback := API(NewStore(true))
	if global.CompareAndSwap(nil, &fallback) {
		return fallback
	}
	return *global.Load()
}
