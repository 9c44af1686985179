package mocks

import "github.com/stretchr/testify/mock"

// testingT - то, что принимают конструкторы моков (обычно *testing.T).
type testingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t testingT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}
