package receipt

import (
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			ref   string
			data  []byte
			saved string
			err   error
		)

		BeforeEach(func() {
			ref = "abc123_test.jpg"
			data = []byte("test file content")
		})

		JustBeforeEach(func() {
			saved, err = storage.Save(ref, data)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the reference", func() {
				Expect(saved).To(Equal(ref))
			})

			It("should save the file to disk", func() {
				Expect(filepath.Join(tmpDir, ref)).To(BeAnExistingFile())
			})
		})

		When("the reference is already taken", func() {
			BeforeEach(func() {
				_, saveErr := storage.Save(ref, []byte("original"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("returns an error", func() {
				Expect(err).To(MatchError(ContainSubstring("creating file")))
			})

			It("keeps the original content", func() {
				stored, getErr := storage.Get(ref)
				Expect(getErr).NotTo(HaveOccurred())
				Expect(string(stored)).To(Equal("original"))
			})
		})

		DescribeTable("rejecting references that leave the directory",
			func(bad string) {
				_, err := storage.Save(bad, data)
				Expect(err).To(MatchError(ContainSubstring("invalid file reference")))
			},
			Entry("empty", ""),
			Entry("parent", ".."),
			Entry("nested traversal", "../escape.txt"),
			Entry("absolute", "/etc/passwd"),
			Entry("backslash", `..\escape.txt`),
		)
	})

	Describe("Get", func() {
		var (
			ref  string
			data []byte
			err  error
		)

		JustBeforeEach(func() {
			data, err = storage.Get(ref)
		})

		When("file exists", func() {
			BeforeEach(func() {
				ref = "test.jpg"
				_, saveErr := storage.Save(ref, []byte("test file content"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("should return the file data", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("test file content"))
			})
		})

		When("file does not exist", func() {
			BeforeEach(func() {
				ref = "nonexistent.jpg"
			})

			It("returns ErrNotFound", func() {
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})

		When("the reference is a path", func() {
			BeforeEach(func() {
				ref = "../test.jpg"
			})

			It("returns an error", func() {
				Expect(err).To(MatchError(ContainSubstring("invalid file reference")))
			})
		})
	})

	Describe("Delete", func() {
		var (
			ref string
			err error
		)

		JustBeforeEach(func() {
			err = storage.Delete(ref)
		})

		When("file exists", func() {
			BeforeEach(func() {
				ref = "test.jpg"
				_, saveErr := storage.Save(ref, []byte("test content"))
				Expect(saveErr).NotTo(HaveOccurred())
			})

			It("should remove the file from disk", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, ref)).NotTo(BeAnExistingFile())
			})

			It("should make the file inaccessible via Get", func() {
				_, getErr := storage.Get(ref)
				Expect(errors.Is(getErr, ErrNotFound)).To(BeTrue())
			})
		})

		When("file does not exist", func() {
			BeforeEach(func() {
				ref = "nonexistent.jpg"
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})

	Describe("NewLocalStorage", func() {
		var (
			storagePath string
			created     Storage
			err         error
		)

		JustBeforeEach(func() {
			created, err = NewLocalStorage(storagePath)
		})

		When("directory does not exist", func() {
			BeforeEach(func() {
				storagePath = filepath.Join(GinkgoT().TempDir(), "receipts")
			})

			It("should create the directory", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(storagePath).To(BeADirectory())
			})

			It("should allow saving files", func() {
				_, saveErr := created.Save("test.jpg", []byte("data"))
				Expect(saveErr).NotTo(HaveOccurred())
			})
		})

		When("directory already exists", func() {
			BeforeEach(func() {
				storagePath = GinkgoT().TempDir()
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})
})
