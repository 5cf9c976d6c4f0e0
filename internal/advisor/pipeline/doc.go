// Package pipeline 实现离线知识库流水线：
// 下载网页与 PDF、加载文档、调用分段 API、写入 Milvus 集合，
// 并基于该集合提供带对话记忆的检索问答链。
package pipeline
