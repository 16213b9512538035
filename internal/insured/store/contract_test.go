package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"insured/internal/insured/models"
	"insured/pkg/platform/sentinel"
)

// contractSuite holds the behaviour every Backend must share. Concrete suites
// embed it and assign store in SetupTest.
type contractSuite struct {
	suite.Suite
	store Backend
	ctx   context.Context
}

func newPerson(id int64) *models.InsuredPerson {
	return &models.InsuredPerson{
		IdentificationNumber: id,
		FirstName:            "Ana",
		FirstSurname:         "Rojas",
		SecondSurname:        "Vega",
		Phone:                "3001234567",
		Email:                "ana@example.com",
		BirthDate:            models.NewDate(1990, 5, 17),
		InsuredValue:         decimal.NewNullDecimal(decimal.RequireFromString("150000.50")),
	}
}

func (s *contractSuite) insert(ids ...int64) {
	for _, id := range ids {
		s.Require().NoError(s.store.Insert(s.ctx, newPerson(id)))
	}
}

func (s *contractSuite) TestInsertAndFind() {
	s.Run("round trips every field", func() {
		p := newPerson(1001)
		middle, notes := "María", "VIP"
		p.MiddleName = &middle
		p.Notes = &notes
		s.Require().NoError(s.store.Insert(s.ctx, p))
		s.Equal(int64(1), p.Version)

		found, err := s.store.FindByID(s.ctx, 1001)
		s.Require().NoError(err)
		s.True(p.Equal(found), "stored %+v, found %+v", p, found)
		s.Equal(int64(1), found.Version)
		s.Equal("1990-05-17", found.BirthDate.String())
	})

	s.Run("absent optional fields stay absent", func() {
		s.insert(1002)
		found, err := s.store.FindByID(s.ctx, 1002)
		s.Require().NoError(err)
		s.Nil(found.MiddleName)
		s.Nil(found.Notes)
	})

	s.Run("unknown identity is not found", func() {
		_, err := s.store.FindByID(s.ctx, 999999)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("duplicate identity is rejected", func() {
		s.insert(1003)
		err := s.store.Insert(s.ctx, newPerson(1003))
		s.ErrorIs(err, sentinel.ErrAlreadyExists)
	})
}

func (s *contractSuite) TestExists() {
	s.insert(2001)

	ok, err := s.store.Exists(s.ctx, 2001)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Exists(s.ctx, 2002)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *contractSuite) TestReplace() {
	s.Run("overwrites data and bumps version", func() {
		s.insert(3001)
		next := newPerson(3001)
		next.FirstName = "Lucía"
		next.Email = "lucia@example.com"

		s.Require().NoError(s.store.Replace(s.ctx, 3001, next, 0))
		s.Equal(int64(2), next.Version)

		found, err := s.store.FindByID(s.ctx, 3001)
		s.Require().NoError(err)
		s.Equal("Lucía", found.FirstName)
		s.Equal("lucia@example.com", found.Email)
		s.Equal(int64(2), found.Version)
	})

	s.Run("clears optional fields sent as absent", func() {
		p := newPerson(3002)
		notes := "temporary"
		p.Notes = &notes
		s.Require().NoError(s.store.Insert(s.ctx, p))

		s.Require().NoError(s.store.Replace(s.ctx, 3002, newPerson(3002), 0))
		found, err := s.store.FindByID(s.ctx, 3002)
		s.Require().NoError(err)
		s.Nil(found.Notes)
	})

	s.Run("matching expected version succeeds", func() {
		s.insert(3003)
		s.Require().NoError(s.store.Replace(s.ctx, 3003, newPerson(3003), 1))
	})

	s.Run("stale expected version conflicts", func() {
		s.insert(3004)
		s.Require().NoError(s.store.Replace(s.ctx, 3004, newPerson(3004), 1))

		err := s.store.Replace(s.ctx, 3004, newPerson(3004), 1)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing record is not found", func() {
		err := s.store.Replace(s.ctx, 3999, newPerson(3999), 0)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *contractSuite) TestDelete() {
	s.Run("removes the record", func() {
		s.insert(4001)
		s.Require().NoError(s.store.Delete(s.ctx, 4001, 0))

		_, err := s.store.FindByID(s.ctx, 4001)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("second delete is not found", func() {
		s.insert(4002)
		s.Require().NoError(s.store.Delete(s.ctx, 4002, 0))
		s.ErrorIs(s.store.Delete(s.ctx, 4002, 0), sentinel.ErrNotFound)
	})

	s.Run("stale expected version conflicts and keeps the record", func() {
		s.insert(4003)
		s.Require().NoError(s.store.Replace(s.ctx, 4003, newPerson(4003), 0))

		s.ErrorIs(s.store.Delete(s.ctx, 4003, 1), sentinel.ErrConflict)
		ok, err := s.store.Exists(s.ctx, 4003)
		s.Require().NoError(err)
		s.True(ok)
	})
}

func (s *contractSuite) TestPaging() {
	s.insert(50, 10, 40, 20, 30)

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(5, n)

	s.Run("pages follow identity order", func() {
		first, err := s.store.ListPage(s.ctx, 0, 2)
		s.Require().NoError(err)
		s.Equal([]int64{10, 20}, identities(first))

		second, err := s.store.ListPage(s.ctx, 2, 2)
		s.Require().NoError(err)
		s.Equal([]int64{30, 40}, identities(second))

		last, err := s.store.ListPage(s.ctx, 4, 2)
		s.Require().NoError(err)
		s.Equal([]int64{50}, identities(last))
	})

	s.Run("offset past the end is an empty page", func() {
		items, err := s.store.ListPage(s.ctx, 100, 10)
		s.Require().NoError(err)
		s.NotNil(items)
		s.Empty(items)
	})

	s.Run("deleted records leave the listing", func() {
		s.Require().NoError(s.store.Delete(s.ctx, 30, 0))
		items, err := s.store.ListPage(s.ctx, 0, 10)
		s.Require().NoError(err)
		s.Equal([]int64{10, 20, 40, 50}, identities(items))
	})
}

func (s *contractSuite) TestConcurrentInsertSameIdentity() {
	const goroutines = 20
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Insert(s.ctx, newPerson(6001))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyExists):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), succeeded.Load())
	s.Equal(int32(goroutines-1), rejected.Load())
}

func (s *contractSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.store.FindByID(ctx, 1)
	s.ErrorIs(err, context.Canceled)
}

func identities(items []*models.InsuredPerson) []int64 {
	out := make([]int64, 0, len(items))
	for _, p := range items {
		out = append(out, p.IdentificationNumber)
	}
	return out
}
