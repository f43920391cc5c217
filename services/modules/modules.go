package modules

import (
	"sync"

	"github.com/kwanifi/ratewatch/log"
)

type (
	Module interface {
		Run() error
		Stop() error
		Title() string
	}

	Group struct {
		modules []Module
		wg      sync.WaitGroup
	}
)

func NewGroup(modules ...Module) *Group {
	return &Group{modules: modules}
}

// Run starts every module in its own goroutine.
func (g *Group) Run() {
	for _, m := range g.modules {
		g.wg.Add(1)
		go func(m Module) {
			defer g.wg.Done()
			log.Info("Module [%s] starting", m.Title())
			if err := m.Run(); err != nil {
				log.Error("Module [%s] run error: %s", m.Title(), err.Error())
				return
			}
			log.Debug("Module [%s] run returned", m.Title())
		}(m)
	}
}

// Stop stops the modules in reverse order and waits for their Run to return.
func (g *Group) Stop() {
	for i := len(g.modules) - 1; i >= 0; i-- {
		m := g.modules[i]
		if err := m.Stop(); err != nil {
			log.Error("Module [%s] stop error: %s", m.Title(), err.Error())
			continue
		}
		log.Info("Module [%s] stopped", m.Title())
	}
	g.wg.Wait()
}
